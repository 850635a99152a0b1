package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shithost/sigma-dash/internal/domain"
	"golang.org/x/oauth2"
)

const (
	providerDiscord = "discord"

	discordAuthURL     = "https://discord.com/oauth2/authorize"
	discordTokenURL    = "https://discord.com/api/oauth2/token"
	discordUserInfoURL = "https://discord.com/api/users/@me"
)

// identityProvider runs the authorization-code flow against one provider.
type identityProvider interface {
	AuthCodeURL(state string) string
	// Exchange trades the code for a token and returns the provider profile.
	Exchange(ctx context.Context, code string) (*domain.Identity, error)
}

type discordOAuthClient struct {
	conf        *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

func newDiscordOAuthClient(clientID, clientSecret, redirectURI string) *discordOAuthClient {
	return &discordOAuthClient{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"identify", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   discordAuthURL,
				TokenURL:  discordTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: discordUserInfoURL,
		httpClient:  &http.Client{},
	}
}

func (c *discordOAuthClient) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
	Email      string `json:"email"`
	Verified   bool   `json:"verified"`
}

func (c *discordOAuthClient) Exchange(ctx context.Context, code string) (*domain.Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	user, err := c.fetchUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("user info fetch failed: %w", err)
	}

	identity := &domain.Identity{
		ID:       user.ID,
		Username: user.GlobalName,
		Avatar:   user.Avatar,
		Email:    user.Email,
		Provider: providerDiscord,
	}
	if identity.Username == "" {
		identity.Username = user.Username
	}
	if user.Email != "" {
		identity.Emails = []domain.Email{{Value: user.Email, Verified: user.Verified}}
	}
	return identity, nil
}

func (c *discordOAuthClient) fetchUser(ctx context.Context, token *oauth2.Token) (*discordUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}

	resp, err := c.conf.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute user request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discord user API returned status %d", resp.StatusCode)
	}

	var user discordUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user response: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("no user id returned")
	}
	return &user, nil
}
