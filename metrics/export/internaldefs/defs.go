package internaldefs

import (
	credauth "github.com/credauth/credauth"
)

// CounterDef binds one engine counter to its exported metric name.
type CounterDef struct {
	ID   credauth.MetricID
	Name string
	Help string
}

// CounterDefs is the single source of truth for exported counter names.
// Exporters iterate this slice so every backend reports the same series.
var CounterDefs = []CounterDef{
	{ID: credauth.MetricLoginSuccess, Name: "credauth_login_success_total", Help: "Successful login attempts."},
	{ID: credauth.MetricLoginFailure, Name: "credauth_login_failure_total", Help: "Failed login attempts."},
	{ID: credauth.MetricAccountCreated, Name: "credauth_account_created_total", Help: "Successful subject registrations."},
	{ID: credauth.MetricAccountDuplicate, Name: "credauth_account_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: credauth.MetricRefreshSuccess, Name: "credauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: credauth.MetricRefreshFailure, Name: "credauth_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: credauth.MetricRefreshReuseDetected, Name: "credauth_refresh_reuse_detected_total", Help: "Refresh attempts with an already-rotated token."},
	{ID: credauth.MetricLogout, Name: "credauth_logout_total", Help: "Single-token logout operations."},
	{ID: credauth.MetricLogoutAll, Name: "credauth_logout_all_total", Help: "Bulk per-subject revocations."},
	{ID: credauth.MetricStoreUnavailable, Name: "credauth_store_unavailable_total", Help: "Operations failed on store infrastructure errors."},
}
