package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"

	"mail-agent/backend/internal/config"
	"mail-agent/backend/pkg/models"
)

const graphScope = "https://graph.microsoft.com/.default"

// GraphDirectory creates users through Microsoft Graph using an
// application (client credentials) token.
type GraphDirectory struct {
	baseURL       string
	usageLocation string
	client        *http.Client
}

// NewGraphDirectory validates cfg. Missing tenant, client id or secret is a
// ConfigurationError and never triggers the simulated fallback.
func NewGraphDirectory(ctx context.Context, cfg config.DirectoryConfig) (*GraphDirectory, error) {
	var missing []string
	if cfg.TenantID == "" {
		missing = append(missing, "directory.tenant_id")
	}
	if cfg.ClientID == "" {
		missing = append(missing, "directory.client_id")
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, "directory.client_secret")
	}
	if len(missing) > 0 {
		return nil, models.NotConfigured("directory", strings.Join(missing, ", ")+" not set")
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = microsoft.AzureADEndpoint(cfg.TenantID).TokenURL
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := cc.Client(ctx)
	client.Timeout = timeout

	baseURL := strings.TrimRight(cfg.GraphURL, "/")
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}
	usage := cfg.UsageLocation
	if usage == "" {
		usage = "US"
	}
	return &GraphDirectory{baseURL: baseURL, usageLocation: usage, client: client}, nil
}

type graphPasswordProfile struct {
	ForceChangePasswordNextSignIn bool   `json:"forceChangePasswordNextSignIn"`
	Password                      string `json:"password"`
}

type graphUser struct {
	AccountEnabled    bool                 `json:"accountEnabled"`
	DisplayName       string               `json:"displayName"`
	MailNickname      string               `json:"mailNickname"`
	UserPrincipalName string               `json:"userPrincipalName"`
	PasswordProfile   graphPasswordProfile `json:"passwordProfile"`
	Department        string               `json:"department"`
	JobTitle          string               `json:"jobTitle"`
	UsageLocation     string               `json:"usageLocation"`
}

// CreateUser posts the user to /users. Anything but 201 Created, including
// token acquisition failures, is an UpstreamCallError.
func (d *GraphDirectory) CreateUser(ctx context.Context, user models.DirectoryUser) (*models.DirectoryAccount, error) {
	body, err := json.Marshal(graphUser{
		AccountEnabled:    true,
		DisplayName:       user.DisplayName,
		MailNickname:      user.MailNickname,
		UserPrincipalName: user.UserPrincipalName,
		PasswordProfile: graphPasswordProfile{
			ForceChangePasswordNextSignIn: true,
			Password:                      user.Password,
		},
		Department:    user.Department,
		JobTitle:      user.JobTitle,
		UsageLocation: d.usageLocation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/users", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, upstreamError(ctx, "graph", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &models.UpstreamCallError{
			Service:    "graph",
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(detail)),
		}
	}

	var created models.DirectoryAccount
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, &models.UpstreamCallError{Service: "graph", Detail: "malformed response", Err: err}
	}
	if created.UserPrincipalName == "" {
		created.UserPrincipalName = user.UserPrincipalName
	}
	return &created, nil
}

// SimulatedDirectory is a non-production directory that accepts every
// account without contacting any service.
type SimulatedDirectory struct{}

// NewSimulatedDirectory creates a SimulatedDirectory.
func NewSimulatedDirectory() *SimulatedDirectory {
	return &SimulatedDirectory{}
}

func (SimulatedDirectory) CreateUser(ctx context.Context, user models.DirectoryUser) (*models.DirectoryAccount, error) {
	return simulatedAccount(user, "simulated directory: no account was created"), nil
}

func simulatedAccount(user models.DirectoryUser, note string) *models.DirectoryAccount {
	return &models.DirectoryAccount{
		ID:                "simulated-" + user.MailNickname,
		UserPrincipalName: user.UserPrincipalName,
		DisplayName:       user.DisplayName,
		Simulated:         true,
		Note:              note,
	}
}

// NewDirectory selects the directory for cfg.Mode.
func NewDirectory(ctx context.Context, cfg config.DirectoryConfig) (DirectoryClient, error) {
	switch cfg.Mode {
	case "graph":
		return NewGraphDirectory(ctx, cfg)
	case "simulated", "":
		return NewSimulatedDirectory(), nil
	default:
		return nil, fmt.Errorf("unsupported directory mode %q", cfg.Mode)
	}
}
