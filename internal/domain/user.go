package domain

// UserState is the folded state of a user stream. A nil *UserState means the
// stream has no events yet.
type UserState struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	Role         string `json:"role"`
}

// User commands.

// BootstrapAdmin creates the initial admin user. The bootstrap-key check
// belongs to the transport layer; by the time this command reaches the
// decider it is already authorized.
type BootstrapAdmin struct {
	UserID       string
	Email        string
	PasswordHash string
}

// RegisterUser creates a regular user. Email uniqueness is pre-checked by
// the command builder against the read side; the decider only guards the
// stream itself.
type RegisterUser struct {
	UserID       string
	Email        string
	PasswordHash string
	Role         string
}

// LoginUser records a successful login. The KDF comparison of the provided
// password against the stored hash is the caller's job; the decider checks
// stream existence and email identity.
type LoginUser struct {
	Email string
}

// FoldUser applies one event to a user state. It is total and deterministic;
// unrecognized kinds fold as identity.
func FoldUser(state *UserState, evt Event) *UserState {
	switch payload := evt.Payload.(type) {
	case UserCreatedPayload:
		if evt.Kind != KindAdminBootstrapped && evt.Kind != KindUserRegistered {
			return state
		}

		return &UserState{
			UserID:       payload.UserID,
			Email:        payload.Email,
			PasswordHash: payload.PasswordHash,
			Role:         payload.Role,
		}
	default:
		// UserLoggedIn and anything unknown leave state unchanged.
		return state
	}
}

// DecideUser evaluates a user command against the current state and returns
// either the accepted event or a rejection.
func DecideUser(state *UserState, cmd any) (Event, *Error) {
	switch c := cmd.(type) {
	case BootstrapAdmin:
		if state != nil {
			return Event{}, NewError(CodeUserAlreadyExists, "user stream already exists")
		}

		return Event{Kind: KindAdminBootstrapped, Payload: UserCreatedPayload{
			UserID:       c.UserID,
			Email:        c.Email,
			PasswordHash: c.PasswordHash,
			Role:         RoleAdmin,
		}}, nil

	case RegisterUser:
		if state != nil {
			return Event{}, NewError(CodeUserAlreadyExists, "user stream already exists")
		}

		role := c.Role
		if role == "" {
			role = RoleUser
		}

		return Event{Kind: KindUserRegistered, Payload: UserCreatedPayload{
			UserID:       c.UserID,
			Email:        c.Email,
			PasswordHash: c.PasswordHash,
			Role:         role,
		}}, nil

	case LoginUser:
		if state == nil || state.Email != c.Email {
			return Event{}, NewError(CodeInvalidCredentials, "invalid credentials")
		}

		return Event{Kind: KindUserLoggedIn, Payload: UserLoggedInPayload{
			UserID: state.UserID,
			Email:  state.Email,
		}}, nil

	default:
		return Event{}, NewError(CodeInvalidRequest, "unknown user command")
	}
}
