// Package cli provides the taskauth administration command.
//
// It shares the server configuration (flags, environment, JSON file) and
// talks to the database directly. Commands:
//
//	bootstrap [-email addr] [-name full name] [-force]
//	    create an administrator; the password is read from the terminal
//	    without echo. Refused when an administrator already exists unless
//	    -force is given.
//	status
//	    report whether an administrator exists.
//
// Missing -email or -name values are prompted for interactively.
package cli
