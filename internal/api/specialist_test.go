package api

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/switchboard/internal/protocol"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

type fakeCompleter struct {
	reply  string
	err    error
	system string
	prompt string
}

func (f *fakeCompleter) Complete(_ context.Context, system, prompt string) (string, error) {
	f.system, f.prompt = system, prompt
	return f.reply, f.err
}

type fakeStreamCompleter struct {
	fakeCompleter
	chunks []string
}

func (f *fakeStreamCompleter) CompleteStream(_ context.Context, system, prompt string, emit func(string) error) error {
	f.system, f.prompt = system, prompt
	for _, c := range f.chunks {
		if err := emit(c); err != nil {
			return err
		}
	}
	return f.err
}

func TestLookupRole(t *testing.T) {
	for _, id := range []string{"order", "inventory", "payment", "shipping", "fraud", "customer_support", "email"} {
		role, err := LookupRole(id)
		if !assert.NoError(t, err, id) {
			continue
		}
		assert.Equal(t, id, role.ID)
		assert.NotEmpty(t, role.Name, id)
		assert.NotEmpty(t, role.Instructions, id)
	}

	_, err := LookupRole(" Inventory ")
	assert.NoError(t, err, "lookup should be case and space insensitive")

	_, err = LookupRole("warehouse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available")

	assert.Len(t, RoleIDs(), 7)
}

func TestSpecialist_Respond(t *testing.T) {
	role, _ := LookupRole("inventory")
	fc := &fakeCompleter{reply: "SKU123 is out of stock"}
	s := NewSpecialist(fc, role, zerolog.Nop())

	got, err := s.Respond(context.Background(), protocol.Inbound{
		ConversationID: "c1",
		Question:       "Is SKU123 available?",
		Context: []protocol.ContextTurn{
			{Role: "user", Text: "Order ORD12345 is stuck"},
			{Role: "tool_result", Text: "Order is processing"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "SKU123 is out of stock", got)
	assert.Equal(t, role.Instructions, fc.system)
	for _, want := range []string{"[user] Order ORD12345 is stuck", "[tool_result] Order is processing", "Is SKU123 available?"} {
		assert.Contains(t, fc.prompt, want)
	}
}

func TestSpecialist_RespondErrors(t *testing.T) {
	role, _ := LookupRole("payment")

	s := NewSpecialist(&fakeCompleter{reply: "x"}, role, zerolog.Nop())
	_, err := s.Respond(context.Background(), protocol.Inbound{Question: "  "})
	var appErr *protocol.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, protocol.CategoryInvalidRequest, appErr.Category)

	backend := errors.New("rate limited")
	s = NewSpecialist(&fakeCompleter{err: backend}, role, zerolog.Nop())
	_, err = s.Respond(context.Background(), protocol.Inbound{Question: "paid?"})
	assert.ErrorIs(t, err, backend)

	s = NewSpecialist(&fakeCompleter{reply: ""}, role, zerolog.Nop())
	_, err = s.Respond(context.Background(), protocol.Inbound{Question: "paid?"})
	assert.Error(t, err, "empty model answer should be an error")
}

func TestSpecialist_RespondStream(t *testing.T) {
	role, _ := LookupRole("shipping")

	var got []string
	emit := func(s string) error {
		got = append(got, s)
		return nil
	}

	streaming := NewSpecialist(&fakeStreamCompleter{chunks: []string{"Not ", "shipped"}}, role, zerolog.Nop())
	require.NoError(t, streaming.RespondStream(context.Background(), protocol.Inbound{Question: "shipped?"}, emit))
	assert.Equal(t, []string{"Not ", "shipped"}, got)

	got = nil
	buffered := NewSpecialist(&fakeCompleter{reply: "Label created"}, role, zerolog.Nop())
	require.NoError(t, buffered.RespondStream(context.Background(), protocol.Inbound{Question: "shipped?"}, emit))
	assert.Equal(t, []string{"Label created"}, got)
}

func TestSpecialist_Card(t *testing.T) {
	role, _ := LookupRole("fraud")
	card := NewSpecialist(&fakeCompleter{}, role, zerolog.Nop()).Card("http://localhost:8105", "1.2.3")

	assert.Equal(t, "Fraud Agent", card.Name)
	assert.Equal(t, "http://localhost:8105", card.URL)
	assert.Equal(t, "1.2.3", card.Version)
	require.Len(t, card.Skills, 1)
	assert.Equal(t, "fraud", card.Skills[0].ID)
}

func TestDrafter_Draft(t *testing.T) {
	fc := &fakeCompleter{reply: "Dear customer, ..."}
	d := NewDrafter(fc, "XYZ Company Customer Service Team")

	rec := models.SynthesisRecord{
		Findings: []models.Finding{
			{CapabilityID: "inventory", DisplayName: "Inventory Agent", Summary: "out of stock", Available: true},
			{CapabilityID: "shipping", DisplayName: "Shipping Agent", Summary: "specialist unavailable: unreachable", Available: false},
		},
		RootCause:         "Inventory shortage",
		RecommendedAction: "Offer a substitute",
		References:        []string{"ORD12345"},
	}

	got, err := d.Draft(context.Background(), "Where is ORD12345?", rec)
	require.NoError(t, err)
	assert.Equal(t, "Dear customer, ...", got)
	assert.Contains(t, fc.system, "XYZ Company Customer Service Team")
	for _, want := range []string{"Where is ORD12345?", "References: ORD12345", "Inventory Agent: out of stock", "Shipping Agent: (could not be checked)", "Root cause: Inventory shortage"} {
		assert.Contains(t, fc.prompt, want)
	}

	failing := NewDrafter(&fakeCompleter{err: errors.New("boom")}, "")
	_, err = failing.Draft(context.Background(), "x", rec)
	assert.Error(t, err)
}
