package main

import (
	"time"

	"github.com/trezcool/ptahub/core"
	"github.com/trezcool/ptahub/core/user"
)

// addUser creates the user or, if the username or email is taken, updates and
// re-activates the existing account.
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	uname = core.CleanString(uname, true)
	email = core.CleanString(email, true)
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(uname)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Username:  uname,
			Email:     email,
			IsActive:  true,
			Roles:     []string{user.RoleParent},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if isAdmin {
			usr.Roles = user.AllRoles
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(usr)
		return err
	}

	usr.Email = email
	if isAdmin {
		usr.Roles = user.AllRoles
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = now
	isActive := true
	_, err = cli.usrRepo.UpdateUser(usr, &isActive)
	return err
}
