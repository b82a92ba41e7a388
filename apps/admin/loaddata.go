package main

import (
	"fmt"
	"os"
	"time"

	"github.com/volatiletech/null/v8"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/ptahub/core"
	"github.com/trezcool/ptahub/core/attendance"
	"github.com/trezcool/ptahub/core/contribution"
	"github.com/trezcool/ptahub/core/user"
)

type (
	userFixture struct {
		Name     string   `yaml:"name"`
		Username string   `yaml:"username"`
		Email    string   `yaml:"email"`
		Password string   `yaml:"password"`
		Roles    []string `yaml:"roles"`
	}

	meetingFixture struct {
		Title    string    `yaml:"title"`
		Date     time.Time `yaml:"date"`
		Location string    `yaml:"location"`
		Agenda   string    `yaml:"agenda"`
	}

	contributionFixture struct {
		Parent  string    `yaml:"parent"` // username
		Project string    `yaml:"project"`
		Amount  float64   `yaml:"amount"`
		Type    string    `yaml:"type"`
		Date    time.Time `yaml:"date"`
	}

	fixtureFile struct {
		Users         []userFixture         `yaml:"users"`
		Meetings      []meetingFixture      `yaml:"meetings"`
		Contributions []contributionFixture `yaml:"contributions"`
	}
)

// loadData seeds users, meetings and contributions from a YAML file.
// Existing users (matched by username) are skipped; contributions reference
// users by username and are created PENDING.
func (cli *commandLine) loadData(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fixtures fixtureFile
	if err = yaml.Unmarshal(raw, &fixtures); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	now := time.Now().UTC()
	var nUsers, nMeetings, nContribs int

	for _, fix := range fixtures.Users {
		uname := core.CleanString(fix.Username, true)
		if _, err = cli.usrRepo.GetUserByUsernameOrEmail(uname); err == nil {
			continue
		} else if err != user.ErrNotFound {
			return err
		}
		usr := user.User{
			Name:      core.CleanString(fix.Name),
			Username:  uname,
			Email:     core.CleanString(fix.Email, true),
			IsActive:  true,
			Roles:     fix.Roles,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if len(usr.Roles) == 0 {
			usr.Roles = []string{user.RoleParent}
		}
		if err = usr.SetPassword(fix.Password); err != nil {
			return err
		}
		if _, err = cli.usrRepo.CreateUser(usr); err != nil {
			return err
		}
		nUsers++
	}

	for _, fix := range fixtures.Meetings {
		m := attendance.Meeting{
			Title:     core.CleanString(fix.Title),
			Date:      fix.Date,
			Location:  core.CleanString(fix.Location),
			Agenda:    core.CleanString(fix.Agenda),
			CreatedAt: now,
		}
		if _, err = cli.attRepo.CreateMeeting(m); err != nil {
			return err
		}
		nMeetings++
	}

	for _, fix := range fixtures.Contributions {
		parent, err := cli.usrRepo.GetUserByUsername(core.CleanString(fix.Parent, true))
		if err != nil {
			return fmt.Errorf("contribution parent %q: %w", fix.Parent, err)
		}
		c := contribution.Contribution{
			ParentID:  parent.ID,
			Amount:    fix.Amount,
			Type:      contribution.Type(fix.Type),
			Date:      fix.Date,
			Status:    contribution.StatusPending,
			CreatedAt: now,
		}
		if project := core.CleanString(fix.Project); project != "" {
			c.ProjectID = null.StringFrom(project)
		}
		if !c.Type.Valid() {
			return fmt.Errorf("contribution for %q: invalid type %q", fix.Parent, fix.Type)
		}
		if _, err = cli.contribRepo.CreateContribution(c); err != nil {
			return err
		}
		nContribs++
	}

	fmt.Printf("loaded %d users, %d meetings, %d contributions\n", nUsers, nMeetings, nContribs)
	return nil
}
