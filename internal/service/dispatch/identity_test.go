package dispatch

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/campaign-api/internal/model"
	apperrors "github.com/jwalitptl/campaign-api/pkg/errors"
)

func TestResolveExplicitContactID(t *testing.T) {
	id := uuid.New()
	contacts := newFakeContactRepo(&model.Contact{
		Base:  model.Base{ID: id},
		Phone: "+5511999990000",
		Name:  "Ana",
	})
	r := NewIdentityResolver(contacts)

	resolved, err := r.Resolve(context.Background(), []model.RecipientInput{
		{ContactID: &id, Phone: "+5511999990000"},
	})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, id, resolved[0].ContactID)
	assert.Equal(t, "Ana", resolved[0].Name)
}

func TestResolveByPhone(t *testing.T) {
	id := uuid.New()
	contacts := newFakeContactRepo(&model.Contact{
		Base:  model.Base{ID: id},
		Phone: "+5511999990000",
	})
	r := NewIdentityResolver(contacts)

	resolved, err := r.Resolve(context.Background(), []model.RecipientInput{
		{Phone: "+5511999990000"},
	})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, id, resolved[0].ContactID)
}

func TestResolveConvergesFormattedVariants(t *testing.T) {
	id := uuid.New()
	contacts := newFakeContactRepo(&model.Contact{
		Base:  model.Base{ID: id},
		Phone: "+5511999990000",
	})
	r := NewIdentityResolver(contacts)

	// Three renditions of the same number collapse onto one contact.
	resolved, err := r.Resolve(context.Background(), []model.RecipientInput{
		{Phone: "+5511999990000"},
		{Phone: "+55 11 99999-0000"},
		{Phone: "005511999990000"},
	})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, id, resolved[0].ContactID)
	assert.Equal(t, "+5511999990000", resolved[0].Phone)
}

func TestResolveFailsWholeBatchOnUnknownPhone(t *testing.T) {
	known := uuid.New()
	contacts := newFakeContactRepo(&model.Contact{
		Base:  model.Base{ID: known},
		Phone: "+5511999990000",
	})
	r := NewIdentityResolver(contacts)

	_, err := r.Resolve(context.Background(), []model.RecipientInput{
		{Phone: "+5511999990000"},
		{Phone: "+5511888880000", Name: "Unknown"},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrIdentityResolution, apperrors.CodeOf(err))

	unresolved := UnresolvedRecipients(err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "+5511888880000", unresolved[0].Phone)
	assert.Equal(t, "Unknown", unresolved[0].Name)
}

func TestResolveHydratesOptOutAndFallbacks(t *testing.T) {
	id := uuid.New()
	contacts := newFakeContactRepo(&model.Contact{
		Base:     model.Base{ID: id},
		Phone:    "+5511999990000",
		Name:     "Stored Name",
		Email:    "stored@example.com",
		OptedOut: true,
	})
	r := NewIdentityResolver(contacts)

	resolved, err := r.Resolve(context.Background(), []model.RecipientInput{
		{ContactID: &id, Phone: "+5511999990000"},
	})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.True(t, resolved[0].OptedOut)
	assert.Equal(t, "Stored Name", resolved[0].Name)
	assert.Equal(t, "stored@example.com", resolved[0].Email)
}

func TestResolveRequestNameWinsOverStored(t *testing.T) {
	id := uuid.New()
	contacts := newFakeContactRepo(&model.Contact{
		Base:  model.Base{ID: id},
		Phone: "+5511999990000",
		Name:  "Stored Name",
	})
	r := NewIdentityResolver(contacts)

	resolved, err := r.Resolve(context.Background(), []model.RecipientInput{
		{ContactID: &id, Phone: "+5511999990000", Name: "Request Name"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Request Name", resolved[0].Name)
}

func TestUnresolvedRecipientsOnUnrelatedError(t *testing.T) {
	assert.Nil(t, UnresolvedRecipients(context.Canceled))
}
