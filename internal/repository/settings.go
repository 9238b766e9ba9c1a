package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Well-known settings keys.
const (
	SettingSiteName           = "site_name"
	SettingContactEmail       = "contact_email"
	SettingSupportPhone       = "support_phone"
	SettingAddress            = "address"
	SettingCurrency           = "currency"
	SettingTaxRate            = "tax_rate"
	SettingShippingFee        = "shipping_fee"
	SettingMinOrderAmount     = "min_order_amount"
	SettingMaintenanceMode    = "maintenance_mode"
	SettingAllowRegistrations = "allow_registrations"
)

type Setting struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// AllSettings loads the full key-value map.
func (q *Queries) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := q.db.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[Setting])
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(items))
	for _, s := range items {
		out[s.Key] = s.Value
	}
	return out, nil
}

// SetSetting upserts a single key.
func (q *Queries) SetSetting(ctx context.Context, key, value string) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	return err
}

// SetSettings upserts several keys; callers wanting atomicity run it
// inside WithTx.
func (q *Queries) SetSettings(ctx context.Context, values map[string]string) error {
	for key, value := range values {
		if err := q.SetSetting(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}
