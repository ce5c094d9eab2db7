// Package registration models the signup wizard as a closed set of states.
// Each state carries exactly the data collected so far, so a cart step
// without a membership, or a children step without applicant details,
// cannot be built.
package registration

import (
	"fmt"
	"strings"

	"github.com/BradenHooton/voice-membership/internal/models"
)

type Step int

const (
	StepUserDetails Step = 1
	StepChildren    Step = 2
	StepMembership  Step = 3
	StepCart        Step = 4
)

// Path is the wizard page serving the step.
func (s Step) Path() string {
	return fmt.Sprintf("/register/step%d", int(s))
}

// Applicant is the account holder entered on the first step. Only the
// bcrypt hash of the chosen password is kept.
type Applicant struct {
	FirstName    string `json:"first_name"`
	MiddleName   string `json:"middle_name,omitempty"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	Phone        string `json:"phone"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	Province     string `json:"province,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
}

// User builds the account record the applicant becomes on completion.
func (a Applicant) User() *models.User {
	return &models.User{
		FirstName:    a.FirstName,
		MiddleName:   a.MiddleName,
		LastName:     a.LastName,
		Email:        models.NormalizeEmail(a.Email),
		PasswordHash: a.PasswordHash,
		Phone:        a.Phone,
		Address:      a.Address,
		City:         a.City,
		Province:     a.Province,
		PostalCode:   a.PostalCode,
		Role:         models.RoleUser,
	}
}

// State is one of UserDetailsStep, ChildrenStep, MembershipStep or CartStep.
type State interface {
	Step() Step
	isState()
}

type UserDetailsStep struct{}

type ChildrenStep struct {
	User     Applicant
	Children []models.Child
}

type MembershipStep struct {
	User     Applicant
	Children []models.Child
}

// CartStep holds the chosen tier. MembershipID is both the selection made
// on step three and the item placed in the cart.
type CartStep struct {
	User         Applicant
	Children     []models.Child
	MembershipID int64
}

func (UserDetailsStep) Step() Step { return StepUserDetails }
func (ChildrenStep) Step() Step    { return StepChildren }
func (MembershipStep) Step() Step  { return StepMembership }
func (CartStep) Step() Step        { return StepCart }

func (UserDetailsStep) isState() {}
func (ChildrenStep) isState()    {}
func (MembershipStep) isState()  {}
func (CartStep) isState()        {}

// StepError rejects a transition whose prerequisites are missing and names
// the furthest step the stored state supports.
type StepError struct {
	Redirect Step
}

func (e *StepError) Error() string {
	return fmt.Sprintf("registration: prerequisites missing, resume at step %d", e.Redirect)
}

func Start() State {
	return UserDetailsStep{}
}

// collected returns the applicant and children of any state past the first
// step.
func collected(s State) (Applicant, []models.Child, bool) {
	switch st := s.(type) {
	case ChildrenStep:
		return st.User, st.Children, true
	case MembershipStep:
		return st.User, st.Children, true
	case CartStep:
		return st.User, st.Children, true
	default:
		return Applicant{}, nil, false
	}
}

// SubmitUserDetails records validated applicant details. Children already
// entered survive a return to the first step; a membership selection does
// not.
func SubmitUserDetails(s State, a Applicant) State {
	_, children, _ := collected(s)
	return ChildrenStep{User: a, Children: children}
}

// AddChildRow appends an empty child row and stays on the children step.
func AddChildRow(s State) (State, error) {
	user, children, ok := collected(s)
	if !ok {
		return nil, &StepError{Redirect: StepUserDetails}
	}

	rows := make([]models.Child, len(children), len(children)+1)
	copy(rows, children)
	return ChildrenStep{User: user, Children: append(rows, models.Child{})}, nil
}

// SubmitChildren replaces the children list. Rows without a name are
// dropped, so an empty list is a valid submission.
func SubmitChildren(s State, children []models.Child) (State, error) {
	user, _, ok := collected(s)
	if !ok {
		return nil, &StepError{Redirect: StepUserDetails}
	}

	kept := make([]models.Child, 0, len(children))
	for _, c := range children {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		c.Name = strings.TrimSpace(c.Name)
		kept = append(kept, c)
	}

	return MembershipStep{User: user, Children: kept}, nil
}

// SelectMembership moves to the cart. Resolving the identifier against the
// catalog is the caller's job; only positive identifiers are accepted here.
func SelectMembership(s State, membershipID int64) (State, error) {
	var user Applicant
	var children []models.Child

	switch st := s.(type) {
	case MembershipStep:
		user, children = st.User, st.Children
	case CartStep:
		user, children = st.User, st.Children
	default:
		return nil, &StepError{Redirect: s.Step()}
	}

	if membershipID <= 0 {
		return nil, &StepError{Redirect: StepMembership}
	}

	return CartStep{User: user, Children: children, MembershipID: membershipID}, nil
}

// RemoveFromCart empties the cart and returns to membership selection.
func RemoveFromCart(s State) (State, error) {
	cart, ok := s.(CartStep)
	if !ok {
		return nil, &StepError{Redirect: s.Step()}
	}
	return MembershipStep{User: cart.User, Children: cart.Children}, nil
}

// Resume returns the step a request for want may actually show: want
// itself when the state has reached it, otherwise the furthest step the
// state supports.
func Resume(s State, want Step) Step {
	if s == nil {
		return StepUserDetails
	}
	if want <= s.Step() {
		return want
	}
	return s.Step()
}
