package domain

import "context"

type PanelUser struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type ServerLimits struct {
	Memory int `json:"memory"`
	Disk   int `json:"disk"`
	CPU    int `json:"cpu"`
}

// PanelServer is a server as listed by the panel. Attributes not listed here are ignored.
type PanelServer struct {
	ID         int          `json:"id"`
	Identifier string       `json:"identifier"`
	Name       string       `json:"name"`
	OwnerID    int          `json:"user"`
	Suspended  bool         `json:"suspended"`
	Limits     ServerLimits `json:"limits"`
}

type CreatePanelUserRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// PanelClient is the subset of the hosting panel API the dashboard uses.
type PanelClient interface {
	FindUserByEmail(ctx context.Context, email string) (*PanelUser, error)
	CreateUser(ctx context.Context, req CreatePanelUserRequest) (*PanelUser, error)
	ListServers(ctx context.Context) ([]PanelServer, error)
}
