package graph

import (
	"context"
	"strconv"

	graphql "github.com/graph-gophers/graphql-go"

	"admindash/internal/logging"
	"admindash/internal/models"
	"admindash/internal/service"
)

// Resolver is the root resolver for queries and mutations
type Resolver struct {
	auth  *service.AuthService
	users *service.UserService
	log   logging.Logger
}

type userResolver struct {
	u *models.User
}

func newUserResolver(u *models.User) *userResolver {
	if u == nil {
		return nil
	}
	return &userResolver{u: u}
}

func (r *userResolver) ID() graphql.ID {
	return graphql.ID(strconv.FormatInt(r.u.ID, 10))
}

func (r *userResolver) Name() string        { return r.u.Name }
func (r *userResolver) Email() string       { return r.u.Email }
func (r *userResolver) Role() string        { return string(r.u.Role) }
func (r *userResolver) Authorized() bool    { return r.u.Authorized }
func (r *userResolver) CreatedAt() DateTime { return DateTime{Time: r.u.CreatedAt} }

func (r *userResolver) ExpirationDate() *DateTime {
	return newDateTime(r.u.ExpirationDate)
}

func (r *userResolver) ProfilePicture() *string {
	if r.u.ProfilePicture == "" {
		return nil
	}
	return &r.u.ProfilePicture
}

func (r *userResolver) PreferredLanguage() string { return r.u.PreferredLanguage }
func (r *userResolver) Theme() string             { return string(r.u.Theme) }
func (r *userResolver) AccentColor() string       { return r.u.AccentColor }

type authPayloadResolver struct {
	user              *models.User
	message           string
	requiresTwoFactor bool
	email             string
}

func (r *authPayloadResolver) User() *userResolver     { return newUserResolver(r.user) }
func (r *authPayloadResolver) Message() string         { return r.message }
func (r *authPayloadResolver) RequiresTwoFactor() bool { return r.requiresTwoFactor }
func (r *authPayloadResolver) Email() string           { return r.email }

type userInput struct {
	Name           string
	Email          string
	Password       string
	Role           *string
	ExpirationDate *DateTime
}

func (in userInput) toNewUser() models.NewUser {
	nu := models.NewUser{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
	}
	if in.Role != nil {
		nu.Role = models.Role(*in.Role)
	}
	if in.ExpirationDate != nil {
		t := in.ExpirationDate.Time
		nu.ExpirationDate = &t
	}
	return nu
}

type userUpdateInput struct {
	Name              *string
	Email             *string
	Password          *string
	Role              *string
	Authorized        *bool
	ExpirationDate    *DateTime
	ProfilePicture    *string
	PreferredLanguage *string
	Theme             *string
	AccentColor       *string
}

func (in userUpdateInput) toPatch() models.UserPatch {
	p := models.UserPatch{
		Name:              in.Name,
		Email:             in.Email,
		Password:          in.Password,
		Authorized:        in.Authorized,
		ProfilePicture:    in.ProfilePicture,
		PreferredLanguage: in.PreferredLanguage,
		AccentColor:       in.AccentColor,
	}
	if in.Role != nil {
		role := models.Role(*in.Role)
		p.Role = &role
	}
	if in.Theme != nil {
		theme := models.Theme(*in.Theme)
		p.Theme = &theme
	}
	if in.ExpirationDate != nil {
		t := in.ExpirationDate.Time
		p.ExpirationDate = &t
	}
	return p
}

type loginInput struct {
	Email    string
	Password string
}

type twoFactorInput struct {
	Email string
	Code  string
}

type emailInput struct {
	Email string
}

type resetPasswordInput struct {
	Token    string
	Password string
}

func parseID(id graphql.ID) (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, badInput("Invalid user ID")
	}
	return n, nil
}

func (r *Resolver) fail(ctx context.Context, err error) error {
	return toError(ctx, r.log, err)
}

// Queries

func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	user := actorFrom(ctx)
	if user == nil {
		return nil, r.fail(ctx, service.ErrUnauthenticated)
	}
	return newUserResolver(user), nil
}

func (r *Resolver) Users(ctx context.Context) ([]*userResolver, error) {
	users, err := r.users.List(ctx, actorFrom(ctx))
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	out := make([]*userResolver, len(users))
	for i := range users {
		out[i] = &userResolver{u: &users[i]}
	}
	return out, nil
}

func (r *Resolver) User(ctx context.Context, args struct{ ID graphql.ID }) (*userResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	user, err := r.users.Get(ctx, actorFrom(ctx), id)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return newUserResolver(user), nil
}

// Mutations

func (r *Resolver) Register(ctx context.Context, args struct{ Input userInput }) (*userResolver, error) {
	sess, user, err := r.auth.Register(ctx, args.Input.toNewUser())
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	stateFrom(ctx).startSession(sess)
	return newUserResolver(user), nil
}

func (r *Resolver) Login(ctx context.Context, args struct{ Input loginInput }) (*authPayloadResolver, error) {
	challenge, err := r.auth.Login(ctx, args.Input.Email, args.Input.Password)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return &authPayloadResolver{
		message:           challenge.Message,
		requiresTwoFactor: challenge.RequiresTwoFactor,
		email:             challenge.Email,
	}, nil
}

func (r *Resolver) VerifyTwoFactor(ctx context.Context, args struct{ Input twoFactorInput }) (*userResolver, error) {
	sess, user, err := r.auth.VerifyTwoFactor(ctx, args.Input.Email, args.Input.Code)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	stateFrom(ctx).startSession(sess)
	return newUserResolver(user), nil
}

func (r *Resolver) ResendCode(ctx context.Context, args struct{ Input emailInput }) (*string, error) {
	if err := r.auth.ResendCode(ctx, args.Input.Email); err != nil {
		return nil, r.fail(ctx, err)
	}
	msg := service.MsgResendRequested
	return &msg, nil
}

func (r *Resolver) ForgotPassword(ctx context.Context, args struct{ Input emailInput }) (*string, error) {
	msg, err := r.auth.ForgotPassword(ctx, args.Input.Email)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return &msg, nil
}

func (r *Resolver) ResetPassword(ctx context.Context, args struct{ Input resetPasswordInput }) (*string, error) {
	if err := r.auth.ResetPassword(ctx, args.Input.Token, args.Input.Password); err != nil {
		return nil, r.fail(ctx, err)
	}
	msg := service.MsgResetSuccessful
	return &msg, nil
}

func (r *Resolver) Logout(ctx context.Context) (*bool, error) {
	st := stateFrom(ctx)
	if id := st.sessionID; id != "" {
		if err := r.auth.Logout(ctx, id); err != nil {
			r.log.Error(ctx, "failed to delete session", "error", err)
		}
	}
	st.endSession()
	ok := true
	return &ok, nil
}

func (r *Resolver) CreateUser(ctx context.Context, args struct{ Input userInput }) (*userResolver, error) {
	user, err := r.users.Create(ctx, actorFrom(ctx), args.Input.toNewUser())
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return newUserResolver(user), nil
}

func (r *Resolver) UpdateUser(ctx context.Context, args struct {
	ID    graphql.ID
	Input userUpdateInput
}) (*userResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	user, err := r.users.Update(ctx, actorFrom(ctx), id, args.Input.toPatch())
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return newUserResolver(user), nil
}

func (r *Resolver) AuthorizeUser(ctx context.Context, args struct {
	ID         graphql.ID
	Authorized bool
}) (*userResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	user, err := r.users.SetAuthorized(ctx, actorFrom(ctx), id, args.Authorized)
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	return newUserResolver(user), nil
}

func (r *Resolver) DeleteUser(ctx context.Context, args struct{ ID graphql.ID }) (*bool, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	if err := r.users.Delete(ctx, actorFrom(ctx), id); err != nil {
		return nil, r.fail(ctx, err)
	}
	ok := true
	return &ok, nil
}
