package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/ptahub/core/attendance"
	"github.com/trezcool/ptahub/core/contribution"
	"github.com/trezcool/ptahub/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db          *sql.DB
	usrRepo     user.Repository
	attRepo     attendance.Repository
	contribRepo contribution.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [args] - apply DB migrations (up, down, status, ...)")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-admin] - update or create a user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  report -kind attendance|contributions - print an aggregate report")
	fmt.Println("  loaddata -file FILE - load users, meetings and contributions from a YAML file")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserIsAdmin := addUserCmd.Bool("admin", false, "Grant all roles.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	reportCmd := flag.NewFlagSet("report", flag.ExitOnError)
	reportKind := reportCmd.String("kind", "", "The report kind: attendance or contributions.")

	loadDataCmd := flag.NewFlagSet("loaddata", flag.ExitOnError)
	loadDataFile := loadDataCmd.String("file", "", "Path to the YAML fixture file.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserUname, *addUserEmail, pwd, *addUserIsAdmin)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	case "report":
		if err := reportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *reportKind == "" {
			reportCmd.Usage()
			return errHelp
		}
		return cli.report(*reportKind, os.Stdout)
	case "loaddata":
		if err := loadDataCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loadDataFile == "" {
			loadDataCmd.Usage()
			return errHelp
		}
		return cli.loadData(*loadDataFile)
	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
