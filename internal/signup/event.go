package signup

// Trigger sources emitted by the identity directory's lifecycle hooks.
const (
	TriggerPreSignUp         = "PreSignUp_SignUp"
	TriggerPreSignUpExternal = "PreSignUp_ExternalProvider"
	TriggerPostConfirmation  = "PostConfirmation_ConfirmSignUp"
)

// Event is a directory lifecycle event as delivered to the trigger
// endpoints. Handlers annotate Response and hand the event back; the
// directory applies whatever the handler returns.
type Event struct {
	UserName      string        `json:"userName"`
	TriggerSource string        `json:"triggerSource"`
	UserPoolID    string        `json:"userPoolId,omitempty"`
	Region        string        `json:"region,omitempty"`
	Request       EventRequest  `json:"request"`
	Response      EventResponse `json:"response"`
}

type EventRequest struct {
	UserAttributes map[string]string `json:"userAttributes"`
}

type EventResponse struct {
	AutoConfirmUser bool `json:"autoConfirmUser"`
	AutoVerifyEmail bool `json:"autoVerifyEmail"`
}

func (e *Event) attribute(names ...string) string {
	for _, name := range names {
		if v := e.Request.UserAttributes[name]; v != "" {
			return v
		}
	}
	return ""
}

// Email returns the event's email attribute.
func (e *Event) Email() string { return e.attribute("email") }

// SubjectID returns the directory-assigned subject identifier.
func (e *Event) SubjectID() string { return e.attribute("sub") }

// GivenName accepts both attribute spellings used by external providers.
func (e *Event) GivenName() string { return e.attribute("given_name", "givenName") }

// FamilyName accepts both attribute spellings used by external providers.
func (e *Event) FamilyName() string { return e.attribute("family_name", "familyName") }
