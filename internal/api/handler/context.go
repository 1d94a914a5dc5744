package handler

import (
	"context"
	"net/http"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/api/middleware"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/audit"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
)

// StaffActor builds the acting identity from the authenticated request
// context. A zero actor means the caller is unauthenticated (public
// endpoints).
func StaffActor(ctx context.Context) dsr.Actor {
	return dsr.Actor{
		ID:   middleware.GetStaffID(ctx),
		Role: middleware.GetStaffRole(ctx),
	}
}

// RequestMeta extracts the transport metadata the audit log anonymizes. The
// IP is whatever RealIP resolved; hashing happens in the audit layer.
func RequestMeta(r *http.Request) audit.RequestMeta {
	return audit.RequestMeta{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}
