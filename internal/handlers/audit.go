package handlers

import (
	"errors"
	"time"

	"github.com/bazaarlabs/bazaar/internal/dispatch"
	"github.com/bazaarlabs/bazaar/internal/repository"
)

// auditPageSize is intentionally larger than the default; audit review
// scans far more rows per sitting than catalogue pages do.
const auditPageSize = 50

func init() {
	registerViews(map[string]string{
		"admin/audit_logs": `
<h1>Audit log</h1>
<form method="GET" action="/admin/audit/logs">
<input type="search" name="search" value="{{.Data.Search}}" placeholder="Actor, action, or details">
<select name="action">
<option value="">All actions</option>
{{$action := .Data.Action}}
{{range .Data.Actions}}<option value="{{.}}"{{if eq . $action}} selected{{end}}>{{.}}</option>{{end}}
</select>
<input type="date" name="start_date" value="{{.Data.StartDate}}">
<input type="date" name="end_date" value="{{.Data.EndDate}}">
<button type="submit">Filter</button>
</form>
<p>{{.Data.Total}} entries</p>
<table>
<tr><th>When</th><th>Actor</th><th>Action</th><th>IP</th><th></th></tr>
{{range .Data.Entries}}<tr><td>{{.CreatedAt.Format "2006-01-02 15:04"}}</td><td>{{.ActorName}}</td><td>{{.Action}}</td><td>{{.IP}}</td><td><a href="/admin/audit/log/{{.ID}}">View</a></td></tr>{{end}}
</table>
{{if gt .Data.Page 1}}<a href="/admin/audit/logs?page={{.Data.PrevPage}}&search={{.Data.Search}}&action={{.Data.Action}}&start_date={{.Data.StartDate}}&end_date={{.Data.EndDate}}">Previous</a>{{end}}
{{if .Data.HasNext}}<a href="/admin/audit/logs?page={{.Data.NextPage}}&search={{.Data.Search}}&action={{.Data.Action}}&start_date={{.Data.StartDate}}&end_date={{.Data.EndDate}}">Next</a>{{end}}`,
		"admin/audit_log": `
<h1>Audit entry</h1>
<dl>
<dt>When</dt><dd>{{.Data.Entry.CreatedAt.Format "2006-01-02 15:04:05"}}</dd>
<dt>Actor</dt><dd>{{.Data.Entry.ActorName}}</dd>
<dt>Action</dt><dd>{{.Data.Entry.Action}}</dd>
<dt>IP</dt><dd>{{.Data.Entry.IP}}</dd>
<dt>User agent</dt><dd>{{.Data.Entry.UserAgent}}</dd>
<dt>Details</dt><dd><pre>{{printf "%s" .Data.Entry.Details}}</pre></dd>
</dl>
<p><a href="/admin/audit/logs">Back to log</a></p>`,
	})
}

// AuditLog serves the admin audit-trail browser.
type AuditLog struct {
	queries  *repository.Queries
	identity Identity
}

// NewAuditLog creates the audit-trail controller.
func NewAuditLog(queries *repository.Queries, identity Identity) *AuditLog {
	return &AuditLog{queries: queries, identity: identity}
}

// Routes declares the audit routes; administrators only.
func (h *AuditLog) Routes(r *dispatch.Router) {
	r.GET("/admin/audit/logs", h.list, dispatch.CapabilityAdministrator)
	r.GET("/admin/audit/log/{id}", h.show, dispatch.CapabilityAdministrator)
}

func (h *AuditLog) userName(c *dispatch.Context) string {
	user, _ := h.identity.CurrentUser(c)
	return user.Name
}

// auditDate parses the Y-m-d filter inputs; malformed dates mean "no
// bound" rather than an error page.
func auditDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (h *AuditLog) list(c *dispatch.Context) (*dispatch.Response, error) {
	pageNum := page(c)
	filter := repository.AuditFilter{
		Search: c.Query("search"),
		Action: c.Query("action"),
		From:   auditDate(c.Query("start_date")),
		Limit:  auditPageSize,
		Offset: (pageNum - 1) * auditPageSize,
	}
	// The end date is inclusive: bump it to the following midnight.
	if to := auditDate(c.Query("end_date")); !to.IsZero() {
		filter.To = to.AddDate(0, 0, 1)
	}

	entries, err := h.queries.ListAudit(c.Context(), filter)
	if err != nil {
		return nil, err
	}
	total, err := h.queries.CountAudit(c.Context(), filter)
	if err != nil {
		return nil, err
	}
	actions, err := h.queries.AuditActions(c.Context())
	if err != nil {
		return nil, err
	}

	return renderAs(c, "admin/audit_logs", "Audit log", h.userName(c), map[string]any{
		"Entries":   entries,
		"Actions":   actions,
		"Total":     total,
		"Search":    filter.Search,
		"Action":    filter.Action,
		"StartDate": c.Query("start_date"),
		"EndDate":   c.Query("end_date"),
		"Page":      pageNum,
		"PrevPage":  pageNum - 1,
		"NextPage":  pageNum + 1,
		"HasNext":   int64(pageNum*auditPageSize) < total,
	}), nil
}

func (h *AuditLog) show(c *dispatch.Context) (*dispatch.Response, error) {
	entry, err := h.queries.FindAuditEntry(c.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dispatch.NotFound(), nil
		}
		return nil, err
	}

	return renderAs(c, "admin/audit_log", "Audit entry", h.userName(c), map[string]any{
		"Entry": entry,
	}), nil
}
