package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"public-feed/auth"
	"public-feed/client"
	"public-feed/domain"
	"public-feed/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const usage = `Usage: feedctl [--addr host:port] <command> [flags]

Commands:
  post    --author NAME [--image FILE] [BODY]
  feed    print the current window
  watch   render the live feed until interrupted
  media   --out FILE LOCATOR
  sweep   trim the feed to its window (admin)
  delete  ID (admin)
`

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, color.FgRed.Render(err.Error()))
	}
	os.Exit(code)
}

func run(args []string) (int, error) {
	_ = godotenv.Load()

	global := pflag.NewFlagSet("feedctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	addr := global.String("addr", envOr("FEED_ADDR", "localhost:8080"), "feed server address")
	secret := global.String("admin-secret", os.Getenv("ADMIN_SECRET"), "secret used to sign admin tokens")
	timeout := global.Duration("timeout", 10*time.Second, "timeout of one-shot calls")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(args); err != nil {
		return exitConfig, err
	}
	if global.NArg() == 0 {
		global.Usage()
		return exitConfig, fmt.Errorf("missing command")
	}

	var opts []client.Option
	if *secret != "" {
		token, err := auth.GenerateToken([]byte(*secret), "feedctl", []string{auth.AdminRole}, 5*time.Minute)
		if err != nil {
			return exitConfig, err
		}
		opts = append(opts, client.WithAdminToken(token))
	}
	c, err := client.Dial(*addr, opts...)
	if err != nil {
		return exitRuntime, err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, rest := global.Arg(0), global.Args()[1:]
	if command == "watch" {
		return exitCode(watch(ctx, c))
	}
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	switch command {
	case "post":
		return exitCode(post(ctx, c, rest))
	case "feed":
		messages, err := c.Feed(ctx)
		if err != nil {
			return exitRuntime, err
		}
		renderWindow(os.Stdout, messages, "")
		return exitOK, nil
	case "media":
		return exitCode(saveMedia(ctx, c, rest))
	case "sweep":
		removed, err := c.Sweep(ctx)
		if err != nil {
			return exitRuntime, err
		}
		fmt.Printf("%d messages removed\n", removed)
		return exitOK, nil
	case "delete":
		if len(rest) != 1 {
			return exitConfig, fmt.Errorf("delete takes exactly one message id")
		}
		if err := c.Delete(ctx, rest[0]); err != nil {
			return exitRuntime, err
		}
		fmt.Println("deleted", rest[0])
		return exitOK, nil
	default:
		global.Usage()
		return exitConfig, fmt.Errorf("unknown command %q", command)
	}
}

func post(ctx context.Context, c *client.Client, args []string) error {
	flags := pflag.NewFlagSet("post", pflag.ContinueOnError)
	author := flags.String("author", os.Getenv("FEED_AUTHOR"), "author name")
	imagePath := flags.String("image", "", "image file to attach")
	if err := flags.Parse(args); err != nil {
		return err
	}

	submission := domain.Submission{
		Author: *author,
		Token:  uuid.NewString(),
	}
	if flags.NArg() > 0 {
		submission.Body = flags.Arg(0)
	}
	if *imagePath != "" {
		data, err := os.ReadFile(*imagePath)
		if err != nil {
			return err
		}
		submission.Image = &domain.RawImage{Data: data, ContentType: mimetype.Detect(data).String()}
	}

	message, err := c.Submit(ctx, submission)
	if err != nil {
		return fmt.Errorf("%s (%s)", errors.UserMessage(err), errors.Kind(err))
	}
	fmt.Println(color.FgGreen.Render("posted"), message.ID, message.CreatedAt.Local().Format(time.DateTime))
	return nil
}

func watch(ctx context.Context, c *client.Client) error {
	return c.Watch(ctx, func(e domain.FeedEvent) error {
		// clear the terminal before each full window
		fmt.Print("\033[H\033[2J")
		if e.Degraded {
			fmt.Println(color.New(color.BgRed, color.FgWhite).Render(" connection lost, showing the last known feed "))
		}
		renderWindow(os.Stdout, e.Messages, os.Getenv("FEED_AUTHOR"))
		fmt.Println(color.FgGray.Sprintf("#%d at %s", e.Seq, e.At.Local().Format(time.TimeOnly)))
		return nil
	})
}

func saveMedia(ctx context.Context, c *client.Client, args []string) error {
	flags := pflag.NewFlagSet("media", pflag.ContinueOnError)
	out := flags.String("out", "", "destination file")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 || *out == "" {
		return fmt.Errorf("media takes a locator and --out")
	}
	data, contentType, err := c.Media(ctx, flags.Arg(0))
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("%s written (%s, %d bytes)\n", *out, contentType, len(data))
	return nil
}

func exitCode(err error) (int, error) {
	if err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
