package erasure

import (
	"context"
	"errors"

	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/dsr"
	"github.com/ShahiSoft/shahi-legalops-suite-sub000/internal/userdata"
)

// Built-in handler priorities. The account anonymizer runs last so that
// handlers resolving the subject by account id still find it intact.
const (
	PriorityComments = 10
	PriorityConsents = 20
	PriorityAccount  = 100
)

// RegisterBuiltins registers the first-party erasure handlers against the
// primary user-data store.
func RegisterBuiltins(reg *Registry, store userdata.Repository) error {
	handlers := []Handler{
		{
			Key:         "comments",
			Label:       "User comments",
			Description: "Redacts the body of every comment the subject authored.",
			Priority:    PriorityComments,
			Fn:          commentsHandler(store),
		},
		{
			Key:         "consent_logs",
			Label:       "Consent records",
			Description: "Deletes the subject's recorded consent decisions.",
			Priority:    PriorityConsents,
			Fn:          consentsHandler(store),
		},
		{
			Key:         "account",
			Label:       "Account profile",
			Description: "Replaces the account's identifying fields with placeholders.",
			Priority:    PriorityAccount,
			Fn:          accountHandler(store),
		},
	}

	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// resolveAccount looks up the subject account for a request, by user id when
// the request carries one and by requester email otherwise. A missing account
// is not an error; the handler simply has nothing to erase.
func resolveAccount(ctx context.Context, store userdata.Repository, req *dsr.Request) (*userdata.Account, error) {
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

func commentsHandler(store userdata.Repository) HandlerFunc {
	return func(ctx context.Context, req *dsr.Request, dryRun bool) ([]AffectedItem, error) {
		account, err := resolveAccount(ctx, store, req)
		if err != nil || account == nil {
			return nil, err
		}

		comments, err := store.ListCommentsByAuthor(ctx, account.ID)
		if err != nil {
			return nil, err
		}

		var items []AffectedItem
		for _, c := range comments {
			if c.Redacted {
				continue
			}
			items = append(items, AffectedItem{Store: "primary", Kind: "comment", ID: c.ID})
		}
		if len(items) == 0 {
			return nil, nil
		}

		if !dryRun {
			if _, err := store.RedactCommentsByAuthor(ctx, account.ID); err != nil {
				return nil, err
			}
		}
		return items, nil
	}
}

func consentsHandler(store userdata.Repository) HandlerFunc {
	return func(ctx context.Context, req *dsr.Request, dryRun bool) ([]AffectedItem, error) {
		account, err := resolveAccount(ctx, store, req)
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

		items := make([]AffectedItem, 0, len(consents))
		for _, c := range consents {
			items = append(items, AffectedItem{Store: "primary", Kind: "consent_record", ID: c.ID})
		}

		if !dryRun {
			if _, err := store.DeleteConsentsByUser(ctx, account.ID); err != nil {
				return nil, err
			}
		}
		return items, nil
	}
}

func accountHandler(store userdata.Repository) HandlerFunc {
	return func(ctx context.Context, req *dsr.Request, dryRun bool) ([]AffectedItem, error) {
		account, err := resolveAccount(ctx, store, req)
		if err != nil || account == nil {
			return nil, err
		}
		if account.Anonymized {
			return nil, nil
		}

		if !dryRun {
			if err := store.AnonymizeAccount(ctx, account.ID); err != nil {
				return nil, err
			}
		}
		return []AffectedItem{{Store: "primary", Kind: "account", ID: account.ID}}, nil
	}
}
