package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-webos/internal/bridges/webos"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/config"
)

var errNoTarget = errors.New("--address or --device is required")

// sessionConfig resolves the target television from flags and, with
// --device, the config file. Flags win over file values.
func (c *cli) sessionConfig() (webos.SessionConfig, error) {
	dev := config.WebOSDeviceConfig{
		ID:        c.device,
		Address:   c.address,
		Port:      c.port,
		Secure:    c.secure,
		ClientKey: c.key,
	}

	if c.device != "" {
		var found bool
		for _, d := range c.cfg.WebOS.Devices {
			if d.ID != c.device {
				continue
			}
			found = true
			if dev.Address == "" {
				dev.Address = d.Address
			}
			if dev.Port == 0 {
				dev.Port = d.Port
			}
			if dev.ClientKey == "" {
				dev.ClientKey = d.ClientKey
			}
			dev.Secure = dev.Secure || d.Secure
		}
		if !found {
			return webos.SessionConfig{}, fmt.Errorf("device %q is not in the config file", c.device)
		}
	}
	if dev.Address == "" {
		return webos.SessionConfig{}, errNoTarget
	}

	sc := webos.SessionConfigFromConfig(dev, c.cfg.WebOS.Session, "")
	// One-shot commands close the session themselves.
	sc.IdleTimeout = 0
	sc.Reconnect = webos.ReconnectPolicy{}
	return sc, nil
}

// withSession opens a session, runs fn and prints any newly issued key.
func (c *cli) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *webos.Session) error) error {
	sc, err := c.sessionConfig()
	if err != nil {
		return err
	}
	s, err := webos.NewSession(sc, c.dialer)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck // Close never fails

	s.SetOnPairingPrompt(func() {
		fmt.Fprintln(cmd.ErrOrStderr(), "Accept the pairing prompt on the television.")
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()

	runErr := fn(ctx, s)

	if key := s.ClientKey(); key != "" && key != sc.ClientKey {
		fmt.Fprintf(cmd.OutOrStdout(), "client key: %s\n", key)
	}
	return runErr
}

func newRequestCmd(c *cli) *cobra.Command {
	var uri, payload string

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Send a raw request and print the response payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uri == "" {
				return errors.New("--uri is required")
			}
			var body any
			if payload != "" {
				if !json.Valid([]byte(payload)) {
					return errors.New("--payload is not valid JSON")
				}
				body = json.RawMessage(payload)
			}

			return c.withSession(cmd, func(ctx context.Context, s *webos.Session) error {
				resp, err := s.RequestWithTimeout(ctx, uri, body, c.timeout)
				if err != nil {
					return err
				}
				var pretty bytes.Buffer
				if err := json.Indent(&pretty, resp, "", "  "); err != nil {
					pretty.Reset()
					pretty.Write(resp)
				}
				fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&uri, "uri", "", "service URI, e.g. ssap://audio/getVolume")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON request payload")
	return cmd
}

func newToastCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "toast MESSAGE",
		Short: "Show a notification on the television",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *webos.Session) error {
				id, err := webos.NewRemote(s).CreateToast(ctx, args[0])
				if err != nil {
					return err
				}
				if id != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "toast shown (%s)\n", id)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "toast shown")
				}
				return nil
			})
		},
	}
}

func newVolumeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "volume [LEVEL]",
		Short: "Print the volume, or set it to LEVEL (0-100)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := -1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 0 || n > 100 {
					return fmt.Errorf("volume must be a number between 0 and 100, got %q", args[0])
				}
				level = n
			}

			return c.withSession(cmd, func(ctx context.Context, s *webos.Session) error {
				rm := webos.NewRemote(s)
				if level >= 0 {
					if err := rm.SetVolume(ctx, level); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "volume set to %d\n", level)
					return nil
				}

				v, err := rm.GetVolume(ctx)
				if err != nil {
					return err
				}
				muted := ""
				if v.Muted {
					muted = " (muted)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "volume: %d%s\n", v.Level, muted)
				return nil
			})
		},
	}
}
