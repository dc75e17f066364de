package main

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/manifoldco/promptui"

	"github.com/charadev96/gochan/internal/client"
	"github.com/charadev96/gochan/internal/client/repository"
	"github.com/charadev96/gochan/internal/server/domain"
	"github.com/charadev96/gochan/internal/shared/config"
	shared "github.com/charadev96/gochan/internal/shared/domain"
	"github.com/charadev96/gochan/internal/shared/log"
)

var commands = []string{"invite", "accept", "deny", "leave", "default", "notices", "channels", "create", "delete"}

var errUsage = errors.New("usage: gochanctl -user NAME <invite USER CHANNEL | accept | deny | leave CHANNEL | default | notices | channels | create NAME [MEMBER...] | delete NAME>")

func main() {
	user := flag.String("user", os.Getenv("USER"), "user issuing the command")
	msgAddr := flag.String("addr", config.DefaultMessagingAddr, "messaging endpoint")
	adminAddr := flag.String("admin", config.DefaultAdminAddr, "admin endpoint")
	timeout := flag.Duration("timeout", 30*time.Second, "per command timeout")
	pins := flag.String("pins", defaultPinsPath(), "file holding trusted server keys")
	flag.Parse()

	logger := log.New("ctl")
	c, closeConn, err := client.Dial(client.DialOptions{
		User:          domain.UserID(*user),
		MessagingAddr: *msgAddr,
		AdminAddr:     *adminAddr,
		Pins:          &repository.TOMLPinRepository{FilePath: *pins},
		Trust:         trustCertificate,
		Logger:        &logger,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect")
		os.Exit(1)
	}
	defer closeConn()

	args := flag.Args()
	if len(args) == 0 {
		args, err = prompt()
		if err != nil {
			logger.Error().Err(err).Msg("prompt aborted")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := execute(ctx, c, args); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func defaultPinsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "gochan-pins.toml"
	}
	return filepath.Join(dir, "gochan", "pins.toml")
}

// trustCertificate asks whether to pin a server key seen for the first
// time or changed since it was pinned.
func trustCertificate(cert *x509.Certificate) bool {
	key, _ := cert.PublicKey.(ed25519.PublicKey)
	fmt.Printf("server presented an unknown key\n  key:     %s\n  expires: %s\n",
		shared.NewPublicKey(key), cert.NotAfter.Format(time.RFC3339))
	p := promptui.Prompt{
		Label:     "Trust this key",
		IsConfirm: true,
	}
	_, err := p.Run()
	return err == nil
}

// prompt asks for a command and its arguments interactively.
func prompt() ([]string, error) {
	sel := promptui.Select{
		Label: "Command",
		Items: commands,
	}
	_, cmd, err := sel.Run()
	if err != nil {
		return nil, err
	}
	args := []string{cmd}

	ask := func(label string) (string, error) {
		p := promptui.Prompt{
			Label: label,
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("%s must not be empty", strings.ToLower(label))
				}
				return nil
			},
		}
		v, err := p.Run()
		return strings.TrimSpace(v), err
	}

	var labels []string
	switch cmd {
	case "invite":
		labels = []string{"User", "Channel"}
	case "leave", "delete", "create":
		labels = []string{"Channel"}
	}
	for _, l := range labels {
		v, err := ask(l)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	if cmd == "create" {
		p := promptui.Prompt{Label: "Members (space separated)"}
		v, err := p.Run()
		if err != nil {
			return nil, err
		}
		args = append(args, strings.Fields(v)...)
	}
	return args, nil
}

func execute(ctx context.Context, c *client.Client, args []string) error {
	need := func(n int) error {
		if len(args) < n+1 {
			return errUsage
		}
		return nil
	}

	var (
		res domain.Result
		err error
	)
	switch args[0] {
	case "invite":
		if err := need(2); err != nil {
			return err
		}
		res, err = c.Invite(ctx, domain.UserID(args[1]), args[2])
	case "accept":
		res, err = c.Accept(ctx)
	case "deny":
		res, err = c.Deny(ctx)
	case "leave":
		if err := need(1); err != nil {
			return err
		}
		res, err = c.Leave(ctx, args[1])
	case "default":
		ch, ok, err := c.DefaultChannel(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no default channel")
			return nil
		}
		fmt.Printf("default channel: %s\n", ch)
		return nil
	case "notices":
		notices, err := c.FetchNotices(ctx)
		if err != nil {
			return err
		}
		for _, n := range notices {
			printNotice(n)
		}
		return nil
	case "channels":
		channels, err := c.ListChannels(ctx)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(channels))
		for name := range channels {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%s (%d members)\n", name, len(channels[name]))
		}
		return nil
	case "create":
		if err := need(1); err != nil {
			return err
		}
		members := make([]domain.UserID, 0, len(args)-2)
		for _, m := range args[2:] {
			members = append(members, domain.UserID(m))
		}
		return c.CreateChannel(ctx, args[1], members...)
	case "delete":
		if err := need(1); err != nil {
			return err
		}
		return c.DeleteChannel(ctx, args[1])
	default:
		return errUsage
	}
	if err != nil {
		return err
	}
	printResult(args[0], res)
	return nil
}

func printResult(cmd string, res domain.Result) {
	switch res.Outcome {
	case domain.OutcomeNotInvited:
		fmt.Println("you have not been invited to any channel")
	case domain.OutcomeChannelNotFound:
		fmt.Printf("channel %s was not found\n", res.Channel)
	case domain.OutcomeAlreadyJoined:
		if cmd == "invite" {
			fmt.Printf("%s is already in %s\n", res.Invitee, res.Channel)
		} else {
			fmt.Printf("you are already in %s\n", res.Channel)
		}
	case domain.OutcomeNotMember:
		fmt.Printf("you are not a member of %s\n", res.Channel)
	case domain.OutcomeSuccess:
		if cmd == "deny" {
			fmt.Printf("denied the invite from %s to %s\n", res.Inviter, res.Channel)
		}
		if res.Replaced != nil {
			fmt.Printf("replaced the invite from %s to %s\n", res.Replaced.Inviter, res.Replaced.Channel)
		}
	}
	for _, n := range res.Notices {
		printNotice(n)
	}
}

func printNotice(n domain.Notice) {
	switch n.Kind {
	case domain.NoticeJoined:
		fmt.Printf("joined channel %s\n", n.Channel)
	case domain.NoticeDefaultSet:
		fmt.Printf("default channel set to %s\n", n.Channel)
	case domain.NoticeLeft:
		fmt.Printf("left channel %s\n", n.Channel)
	case domain.NoticeInvited:
		fmt.Printf("%s invited you to %s\n", n.Actor, n.Channel)
	case domain.NoticeInviteSent:
		fmt.Printf("invited %s to %s\n", n.Actor, n.Channel)
	case domain.NoticeInviteAccepted:
		fmt.Printf("%s accepted your invite to %s\n", n.Actor, n.Channel)
	case domain.NoticeInviteDenied:
		fmt.Printf("%s denied your invite to %s\n", n.Actor, n.Channel)
	default:
		fmt.Printf("%s: %s\n", n.Kind, n.Channel)
	}
}
