package registration

import (
	"testing"

	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var applicant = Applicant{
	FirstName:    "Jordan",
	LastName:     "Tremblay",
	Email:        "Jordan@Example.com",
	PasswordHash: "$2a$14$hash",
	Phone:        "613-555-0100",
	PostalCode:   "K1A 0B1",
}

func requireStepError(t *testing.T, err error, want Step) {
	t.Helper()
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, want, stepErr.Redirect)
}

func TestHappyPath(t *testing.T) {
	s := Start()
	assert.Equal(t, StepUserDetails, s.Step())

	s = SubmitUserDetails(s, applicant)
	assert.Equal(t, StepChildren, s.Step())

	s, err := AddChildRow(s)
	require.NoError(t, err)
	assert.Len(t, s.(ChildrenStep).Children, 1)

	s, err = SubmitChildren(s, []models.Child{{Name: " Sam "}, {Name: "  "}})
	require.NoError(t, err)
	ms := s.(MembershipStep)
	require.Len(t, ms.Children, 1)
	assert.Equal(t, "Sam", ms.Children[0].Name)

	s, err = SelectMembership(s, 2)
	require.NoError(t, err)
	cart := s.(CartStep)
	assert.Equal(t, int64(2), cart.MembershipID)
	assert.Equal(t, applicant, cart.User)
}

func TestSubmitChildren_EmptyListAdvances(t *testing.T) {
	s, err := SubmitChildren(SubmitUserDetails(Start(), applicant), nil)
	require.NoError(t, err)
	assert.Equal(t, StepMembership, s.Step())
	assert.Empty(t, s.(MembershipStep).Children)
}

func TestGuards(t *testing.T) {
	_, err := AddChildRow(Start())
	requireStepError(t, err, StepUserDetails)

	_, err = SubmitChildren(Start(), nil)
	requireStepError(t, err, StepUserDetails)

	children := SubmitUserDetails(Start(), applicant)
	_, err = SelectMembership(children, 1)
	requireStepError(t, err, StepChildren)

	membership, err := SubmitChildren(children, nil)
	require.NoError(t, err)
	_, err = SelectMembership(membership, 0)
	requireStepError(t, err, StepMembership)

	_, err = RemoveFromCart(membership)
	requireStepError(t, err, StepMembership)
}

func TestGoingBackDropsSelection(t *testing.T) {
	s := SubmitUserDetails(Start(), applicant)
	s, _ = SubmitChildren(s, []models.Child{{Name: "Sam"}})
	s, _ = SelectMembership(s, 2)

	back, err := AddChildRow(s)
	require.NoError(t, err)
	assert.Equal(t, StepChildren, back.Step())
	assert.Len(t, back.(ChildrenStep).Children, 2)

	restart := SubmitUserDetails(s, applicant)
	assert.Equal(t, StepChildren, restart.Step())
	assert.Len(t, restart.(ChildrenStep).Children, 1)

	removed, err := RemoveFromCart(s)
	require.NoError(t, err)
	assert.Equal(t, StepMembership, removed.Step())
}

func TestAddChildRow_DoesNotAliasPreviousState(t *testing.T) {
	base := ChildrenStep{User: applicant, Children: make([]models.Child, 1, 4)}

	next, err := AddChildRow(base)
	require.NoError(t, err)
	next.(ChildrenStep).Children[0].Name = "changed"

	assert.Empty(t, base.Children[0].Name)
}

func TestResume(t *testing.T) {
	s := SubmitUserDetails(Start(), applicant)

	assert.Equal(t, StepUserDetails, Resume(nil, StepCart))
	assert.Equal(t, StepChildren, Resume(s, StepCart))
	assert.Equal(t, StepChildren, Resume(s, StepChildren))
	assert.Equal(t, StepUserDetails, Resume(s, StepUserDetails))

	s, _ = SubmitChildren(s, nil)
	assert.Equal(t, StepMembership, Resume(s, StepCart))
}

func TestApplicantUser(t *testing.T) {
	u := applicant.User()
	assert.Equal(t, "jordan@example.com", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.Equal(t, applicant.PasswordHash, u.PasswordHash)
}

func TestEncodeDecode(t *testing.T) {
	age := 7
	cart := CartStep{User: applicant, Children: []models.Child{{Name: "Sam", Age: &age}}, MembershipID: 3}

	data, err := Encode(cart)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"step":4`)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, cart, decoded)
}

func TestDecode_RejectsInconsistentEnvelopes(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"step":2}`,
		`{"step":4,"user":{"email":"a@b.com"}}`,
		`{"step":9,"user":{"email":"a@b.com"}}`,
	} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrCorruptState, raw)
	}
}

func TestStepPath(t *testing.T) {
	assert.Equal(t, "/register/step3", StepMembership.Path())
}
