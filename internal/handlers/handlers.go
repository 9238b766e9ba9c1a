// Package handlers holds the controllers: each declares its routes with
// the capability they need and renders server-side pages or JSON. All
// money amounts render from cents.
package handlers

import (
	"context"
	"strconv"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
	"github.com/bazaarlabs/bazaar/pkg/job"
)

// defaultPageSize bounds list pages across the app.
const defaultPageSize = 20

// Identity is the slice of the auth provider the controllers need.
type Identity interface {
	CurrentUser(c *dispatch.Context) (repository.User, bool)
	Attempt(c *dispatch.Context, email, password string) (repository.User, error)
	Login(c *dispatch.Context, user repository.User) error
	Logout(c *dispatch.Context) error
}

// Enqueuer queues background tasks; satisfied by *job.Manager.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, opts ...job.EnqueueOption) error
}

// page parses the 1-based ?page query parameter.
func page(c *dispatch.Context) int {
	n, err := strconv.Atoi(c.Query("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// offset converts a 1-based page to a row offset.
func offset(pageNum int) int {
	return (pageNum - 1) * defaultPageSize
}

// formInt parses an integer body parameter with a fallback.
func formInt(c *dispatch.Context, name string, fallback int) int {
	n, err := strconv.Atoi(c.Form(name))
	if err != nil {
		return fallback
	}
	return n
}

// parseCents reads a decimal money field ("12.50") into cents. Returns
// false on malformed or negative input.
func parseCents(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return int64(value*100 + 0.5), true
}

// money formats cents as a decimal string for templates.
func money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + pad2(cents%100)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// redirectBack bounces to the Referer, or to fallback when absent.
func redirectBack(c *dispatch.Context, fallback string) *dispatch.Response {
	target := c.Request().Referer()
	if target == "" {
		target = fallback
	}
	return dispatch.SeeOther(target)
}
