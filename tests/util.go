package testutil

import (
	"net/mail"
	"testing"
	"time"

	"github.com/trezcool/ptahub/core"
	"github.com/trezcool/ptahub/core/user"
)

// NewConfig returns a self-contained config for tests; no env files are read.
func NewConfig() *core.Config {
	return &core.Config{
		Debug:            false, // keep API error payloads production-shaped
		TestMode:         true,
		Env:              "TEST",
		AppName:          "PTA Hub",
		SecretKey:        "s3cr3t-t3st-k3y",
		DefaultFromEmail: mail.Address{Name: "PTA Hub", Address: "noreply@ptahub.test"},
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		},
		Workflow: core.WorkflowConfig{
			PassingScore:          75,
			PenaltyAmount:         50,
			PenaltyDueDelta:       14 * 24 * time.Hour,
			RequiredApplicantDocs: []string{"resume", "letter", "diploma"},
		},
		FileStore: core.FileStoreConfig{Root: "/tmp/ptahub-test-files"},
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}
