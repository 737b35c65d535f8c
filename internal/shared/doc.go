// Package shared contains common error types and utilities for error handling
// across the application without domain-specific logic.
//
// # Error Types and Classification
//
// Sentinel errors describe the failure classes the service reports:
//
//   - ErrNotFound: job or resource not found
//   - ErrValidation: input validation failed (bad cron, empty name)
//   - ErrConflict: resource conflict (job name already scheduled)
//   - ErrInternal: internal error
//   - ErrTimeout: operation timed out
//   - ErrDependencyFailure: store, webhook or Telegram failed
//
// Domain errors either wrap a sentinel or implement Is(target) so that
// KindOf can classify them:
//
//	switch shared.KindOf(err) {
//	case shared.KindNotFound:
//	    return http.StatusNotFound
//	case shared.KindConflict:
//	    return http.StatusConflict
//	default:
//	    return http.StatusInternalServerError
//	}
//
// # Kind Priority Table
//
// When several kinds are present (errors.Join), KindOf returns the first in
// this order:
//
//	Priority | Kind
//	---------|----------------------
//	1        | KindCanceled
//	2        | KindTimeout
//	3        | KindNotFound
//	4        | KindValidation
//	5        | KindConflict
//	6        | KindDependencyFailure
//	7        | KindInternal
//
// # Adapting third-party errors
//
// Use MarkKind at the boundary where a driver error enters the domain:
//
//	if err := rows.Err(); err != nil {
//	    return shared.MarkKind(err, shared.KindDependencyFailure)
//	}
package shared
