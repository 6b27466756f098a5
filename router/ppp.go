package router

import (
	"context"
	"fmt"

	"github.com/nanoncore/nano-ctlplane/drivers/routeros"
)

// PPPActive lists the active PPP sessions of a subscriber
func (c *Channel) PPPActive(ctx context.Context, routerID, username string) ([]map[string]string, error) {
	return c.Submit(ctx, routerID, "/ppp/active/print", routeros.Query("name", username))
}

// KickPPPActive removes every active session of a subscriber and returns
// how many were removed.
func (c *Channel) KickPPPActive(ctx context.Context, routerID, username string) (int, error) {
	sessions, err := c.PPPActive(ctx, routerID, username)
	if err != nil {
		return 0, err
	}
	kicked := 0
	for _, s := range sessions {
		id := s[".id"]
		if id == "" {
			continue
		}
		if _, err := c.Submit(ctx, routerID, "/ppp/active/remove", routeros.ID(id)); err != nil {
			return kicked, fmt.Errorf("remove session %s of %s: %w", id, username, err)
		}
		kicked++
	}
	return kicked, nil
}

// SetPPPSecretDisabled enables or disables a subscriber's PPP secret
func (c *Channel) SetPPPSecretDisabled(ctx context.Context, routerID, username string, disabled bool) error {
	value := "no"
	if disabled {
		value = "yes"
	}
	return c.setSecret(ctx, routerID, username, routeros.Attr("disabled", value))
}

// SetPPPSecretProfile moves a subscriber's PPP secret to another profile
func (c *Channel) SetPPPSecretProfile(ctx context.Context, routerID, username, profile string) error {
	return c.setSecret(ctx, routerID, username, routeros.Attr("profile", profile))
}

func (c *Channel) setSecret(ctx context.Context, routerID, username, attr string) error {
	rows, err := c.Submit(ctx, routerID, "/ppp/secret/print", routeros.Query("name", username), routeros.Proplist(".id"))
	if err != nil {
		return err
	}
	if len(rows) == 0 || rows[0][".id"] == "" {
		return routeros.NewTrapError("", fmt.Sprintf("no such item: ppp secret %q", username))
	}
	_, err = c.Submit(ctx, routerID, "/ppp/secret/set", routeros.ID(rows[0][".id"]), attr)
	return err
}

// Identity returns the router's system identity name
func (c *Channel) Identity(ctx context.Context, routerID string) (string, error) {
	rows, err := c.Submit(ctx, routerID, "/system/identity/print")
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0]["name"], nil
}

// Resource returns /system/resource (uptime, version, cpu-load, memory)
func (c *Channel) Resource(ctx context.Context, routerID string) (map[string]string, error) {
	rows, err := c.Submit(ctx, routerID, "/system/resource/print")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]string{}, nil
	}
	return rows[0], nil
}
