package models

// DirectoryUser is the account request sent to the directory service.
type DirectoryUser struct {
	DisplayName       string
	MailNickname      string
	UserPrincipalName string
	Password          string
	Department        string
	JobTitle          string
}

// DirectoryAccount is what the directory reports back after creation.
type DirectoryAccount struct {
	ID                string `json:"id,omitempty"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName,omitempty"`
	Simulated         bool   `json:"simulated"`
	Note              string `json:"note,omitempty"`
}

// ProvisionResult is the outcome of AccountProvisioner.Create. Password is
// returned to the caller once and must not be stored.
type ProvisionResult struct {
	Success      bool              `json:"success"`
	LoginEmail   string            `json:"email"`
	Password     string            `json:"password,omitempty"`
	Provider     *DirectoryAccount `json:"provider_detail,omitempty"`
	Simulated    bool              `json:"simulated"`
	Notified     bool              `json:"notified"`
	Notification *SendResult       `json:"notification,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// ProvisionBatchResult aggregates a bulk account creation.
type ProvisionBatchResult struct {
	Total      int                `json:"total"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	Results    []*ProvisionResult `json:"results"`
}

// Settings is the organization settings document.
type Settings struct {
	CompanyName           string `json:"company_name"`
	EmailTemplate         string `json:"email_template"`
	DefaultPasswordLength int    `json:"default_password_length"`
}

// SettingsDocumentName keys the organization settings record.
const SettingsDocumentName = "organization"

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() Settings {
	return Settings{
		CompanyName:           "Your Company",
		EmailTemplate:         "Welcome to {company_name}!",
		DefaultPasswordLength: 8,
	}
}
