package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/campaign-api/internal/model"
	"github.com/jwalitptl/campaign-api/internal/repository"
	apperrors "github.com/jwalitptl/campaign-api/pkg/errors"
	"github.com/jwalitptl/campaign-api/pkg/phone"
)

// IdentityResolver turns a heterogeneous recipient list into one where
// every entry carries a contact identity, or fails the whole dispatch.
// Sending without a durable identity would make status reconciliation
// and unsubscribe handling impossible, so there is no best-effort path.
type IdentityResolver struct {
	contacts repository.ContactRepository
}

func NewIdentityResolver(contacts repository.ContactRepository) *IdentityResolver {
	return &IdentityResolver{contacts: contacts}
}

// Resolve returns the fully resolved recipient list. When any entry
// still lacks an identity after lookup, it returns an
// identity-resolution error carrying the offending phone/name pairs.
func (r *IdentityResolver) Resolve(ctx context.Context, inputs []model.RecipientInput) ([]model.Recipient, error) {
	// Batch-lookup candidates for every entry missing an identity,
	// using both the raw and normalized phone: providers and UIs may
	// have stored either form.
	var candidates []string
	for _, in := range inputs {
		if in.ContactID != nil {
			continue
		}
		candidates = append(candidates, in.Phone)
		if n := phone.Normalize(in.Phone); n != "" && n != in.Phone {
			candidates = append(candidates, n)
		}
	}

	byPhone := map[string]uuid.UUID{}
	if len(candidates) > 0 {
		refs, err := r.contacts.LookupByPhones(ctx, candidates)
		if err != nil {
			return nil, fmt.Errorf("failed contact lookup: %w", err)
		}
		for _, ref := range refs {
			byPhone[ref.Phone] = ref.ID
			if n := phone.Normalize(ref.Phone); n != "" {
				byPhone[n] = ref.ID
			}
		}
	}

	var (
		resolved   []model.Recipient
		unresolved []model.UnresolvedRecipient
		seen       = map[uuid.UUID]bool{}
	)
	for _, in := range inputs {
		rec := model.Recipient{
			Phone:        canonicalPhone(in.Phone),
			Name:         in.Name,
			Email:        in.Email,
			CustomFields: in.CustomFields,
		}
		switch {
		case in.ContactID != nil:
			rec.ContactID = *in.ContactID
		default:
			id, ok := byPhone[in.Phone]
			if !ok {
				id, ok = byPhone[phone.Normalize(in.Phone)]
			}
			if !ok {
				unresolved = append(unresolved, model.UnresolvedRecipient{Phone: in.Phone, Name: in.Name})
				continue
			}
			rec.ContactID = id
		}

		// Differently formatted renditions of one number collapse to a
		// single recipient here, keyed on the resolved identity.
		if seen[rec.ContactID] {
			continue
		}
		seen[rec.ContactID] = true
		resolved = append(resolved, rec)
	}

	if len(unresolved) > 0 {
		return nil, apperrors.NewIdentityResolution(
			fmt.Sprintf("%d recipient(s) could not be resolved to a contact", len(unresolved)),
			&unresolvedError{Recipients: unresolved},
		)
	}

	return r.hydrate(ctx, resolved)
}

// hydrate pulls contact-store state (opt-out flag, fallback
// name/email) onto the resolved recipients.
func (r *IdentityResolver) hydrate(ctx context.Context, recipients []model.Recipient) ([]model.Recipient, error) {
	if len(recipients) == 0 {
		return recipients, nil
	}
	ids := make([]uuid.UUID, 0, len(recipients))
	for _, rec := range recipients {
		ids = append(ids, rec.ContactID)
	}
	contacts, err := r.contacts.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate contacts: %w", err)
	}
	byID := make(map[uuid.UUID]*model.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}

	for i := range recipients {
		c, ok := byID[recipients[i].ContactID]
		if !ok {
			continue
		}
		recipients[i].OptedOut = c.OptedOut
		if recipients[i].Name == "" {
			recipients[i].Name = c.Name
		}
		if recipients[i].Email == "" {
			recipients[i].Email = c.Email
		}
		if recipients[i].Phone == "" {
			recipients[i].Phone = canonicalPhone(c.Phone)
		}
	}
	return recipients, nil
}

func canonicalPhone(raw string) string {
	if n := phone.Normalize(raw); n != "" {
		return n
	}
	return raw
}

// unresolvedError carries the offending entries so the handler can
// return them as structured details.
type unresolvedError struct {
	Recipients []model.UnresolvedRecipient
}

func (e *unresolvedError) Error() string {
	return fmt.Sprintf("%d unresolved recipient(s)", len(e.Recipients))
}

// UnresolvedRecipients extracts the offending entries from an
// identity-resolution error, if present.
func UnresolvedRecipients(err error) []model.UnresolvedRecipient {
	var ue *unresolvedError
	if errors.As(err, &ue) {
		return ue.Recipients
	}
	return nil
}
