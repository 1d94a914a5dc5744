package export

import (
	"context"
	"errors"
	"time"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/userdata"
)

// Built-in provider priorities.
const (
	PriorityProfile  = 10
	PriorityComments = 20
	PriorityConsents = 30
)

// RegisterBuiltins registers the first-party export providers against the
// primary user-data store.
func RegisterBuiltins(reg *Registry, store userdata.Repository) error {
	providers := []Provider{
		{Key: "profile", Label: "Account profile", Priority: PriorityProfile, Fn: profileProvider(store)},
		{Key: "comments", Label: "Comments", Priority: PriorityComments, Fn: commentsProvider(store)},
		{Key: "consent_logs", Label: "Consent records", Priority: PriorityConsents, Fn: consentsProvider(store)},
	}
	for _, p := range providers {
		if err := reg.Register(p); err != nil {
			return err
		}
	}
	return nil
}

func subjectAccount(ctx context.Context, store userdata.Repository, req *dsr.Request) (*userdata.Account, error) {
	userID := ""
	if req.UserID != nil {
		userID = *req.UserID
	}
	a, err := store.FindAccount(ctx, userID, req.RequesterEmail)
	if err != nil {
		if errors.Is(err, userdata.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func profileProvider(store userdata.Repository) ProviderFunc {
	return func(ctx context.Context, req *dsr.Request) (map[string]interface{}, error) {
		account, err := subjectAccount(ctx, store, req)
		if err != nil || account == nil {
			return nil, err
		}
		return map[string]interface{}{
			"id":           account.ID,
			"email":        account.Email,
			"display_name": account.DisplayName,
			"locale":       account.Locale,
			"created_at":   account.CreatedAt.Format(time.RFC3339),
		}, nil
	}
}

func commentsProvider(store userdata.Repository) ProviderFunc {
	return func(ctx context.Context, req *dsr.Request) (map[string]interface{}, error) {
		account, err := subjectAccount(ctx, store, req)
		if err != nil || account == nil {
			return nil, err
		}
		comments, err := store.ListCommentsByAuthor(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		if len(comments) == 0 {
			return nil, nil
		}

		items := make([]interface{}, 0, len(comments))
		for _, c := range comments {
			items = append(items, map[string]interface{}{
				"id":         c.ID,
				"body":       c.Body,
				"created_at": c.CreatedAt.Format(time.RFC3339),
			})
		}
		return map[string]interface{}{"comments": items}, nil
	}
}

func consentsProvider(store userdata.Repository) ProviderFunc {
	return func(ctx context.Context, req *dsr.Request) (map[string]interface{}, error) {
		account, err := subjectAccount(ctx, store, req)
		if err != nil || account == nil {
			return nil, err
		}
		consents, err := store.ListConsentsByUser(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		if len(consents) == 0 {
			return nil, nil
		}

		items := make([]interface{}, 0, len(consents))
		for _, c := range consents {
			items = append(items, map[string]interface{}{
				"id":          c.ID,
				"purpose":     c.Purpose,
				"granted":     c.Granted,
				"recorded_at": c.RecordedAt.Format(time.RFC3339),
			})
		}
		return map[string]interface{}{"consents": items}, nil
	}
}
