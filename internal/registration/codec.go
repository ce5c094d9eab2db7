package registration

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BradenHooton/voice-membership/internal/models"
)

var ErrCorruptState = errors.New("registration: stored state is invalid")

type envelope struct {
	Step         Step           `json:"step"`
	User         *Applicant     `json:"user,omitempty"`
	Children     []models.Child `json:"children,omitempty"`
	MembershipID int64          `json:"membership_id,omitempty"`
}

// Encode serializes s as a tagged envelope.
func Encode(s State) ([]byte, error) {
	env := envelope{Step: s.Step()}

	switch st := s.(type) {
	case UserDetailsStep:
	case ChildrenStep:
		env.User, env.Children = &st.User, st.Children
	case MembershipStep:
		env.User, env.Children = &st.User, st.Children
	case CartStep:
		env.User, env.Children, env.MembershipID = &st.User, st.Children, st.MembershipID
	default:
		return nil, fmt.Errorf("registration: unknown state %T", s)
	}

	return json.Marshal(env)
}

// Decode rebuilds a state, rejecting envelopes whose data does not satisfy
// the step they claim.
func Decode(data []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	if env.Step == StepUserDetails {
		return UserDetailsStep{}, nil
	}
	if env.User == nil {
		return nil, ErrCorruptState
	}

	switch env.Step {
	case StepChildren:
		return ChildrenStep{User: *env.User, Children: env.Children}, nil
	case StepMembership:
		return MembershipStep{User: *env.User, Children: env.Children}, nil
	case StepCart:
		if env.MembershipID <= 0 {
			return nil, ErrCorruptState
		}
		return CartStep{User: *env.User, Children: env.Children, MembershipID: env.MembershipID}, nil
	default:
		return nil, ErrCorruptState
	}
}
