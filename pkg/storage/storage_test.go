package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{Bucket: "bazaar-media", AccessKey: "key", SecretKey: "secret"}
	cfg.applyDefaults()

	require.Equal(t, DefaultRegion, cfg.Region)
	require.Equal(t, ACLPrivate, cfg.DefaultACL)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"complete", Config{Bucket: "b", AccessKey: "a", SecretKey: "s"}, true},
		{"missing bucket", Config{AccessKey: "a", SecretKey: "s"}, false},
		{"missing access key", Config{Bucket: "b", SecretKey: "s"}, false},
		{"missing secret key", Config{Bucket: "b", AccessKey: "a"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.cfg.validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Bucket: "bazaar-media"})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
