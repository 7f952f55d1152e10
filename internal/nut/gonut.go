package nut

import (
	"context"
	"fmt"

	gonut "github.com/robbiet480/go.nut"
)

// Compile-time interface guard.
var _ Client = (*gonutClient)(nil)

// gonutClient adapts the go.nut library to the Client interface.
type gonutClient struct {
	conn gonut.Client
}

// Dial opens a TCP connection to a NUT server and authenticates when a
// login is supplied. It satisfies Dialer.
//
// go.nut performs blocking socket I/O without context support; ctx is
// checked between round-trips only.
func Dial(ctx context.Context, host string, port uint16, login, password string) (Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := gonut.Connect(host, int(port))
	if err != nil {
		return nil, fmt.Errorf("connect %s:%d: %w", host, port, err)
	}

	if login != "" {
		if _, err := conn.Authenticate(login, password); err != nil {
			_, _ = conn.Disconnect()
			return nil, fmt.Errorf("authenticate as %q: %w", login, err)
		}
	}

	return &gonutClient{conn: conn}, nil
}

func (c *gonutClient) ListDevices(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	upses, err := c.conn.GetUPSList()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	devices := make(map[string]string, len(upses))
	for _, u := range upses {
		devices[u.Name] = u.Description
	}
	return devices, nil
}

func (c *gonutClient) Variables(ctx context.Context, device string) (map[string]string, error) {
	ups, err := c.ups(ctx, device)
	if err != nil {
		return nil, err
	}
	list, err := ups.GetVariables()
	if err != nil {
		return nil, fmt.Errorf("get variables for %q: %w", device, err)
	}
	vars := make(map[string]string, len(list))
	for _, v := range list {
		vars[v.Name] = fmt.Sprintf("%v", v.Value)
	}
	return vars, nil
}

func (c *gonutClient) WritableVariables(ctx context.Context, device string) ([]string, error) {
	ups, err := c.ups(ctx, device)
	if err != nil {
		return nil, err
	}
	list, err := ups.GetVariables()
	if err != nil {
		return nil, fmt.Errorf("get variables for %q: %w", device, err)
	}
	var names []string
	for _, v := range list {
		if v.Writeable {
			names = append(names, v.Name)
		}
	}
	return names, nil
}

func (c *gonutClient) Commands(ctx context.Context, device string) (map[string]string, error) {
	ups, err := c.ups(ctx, device)
	if err != nil {
		return nil, err
	}
	list, err := ups.GetCommands()
	if err != nil {
		return nil, fmt.Errorf("get commands for %q: %w", device, err)
	}
	commands := make(map[string]string, len(list))
	for _, cmd := range list {
		commands[cmd.Name] = cmd.Description
	}
	return commands, nil
}

func (c *gonutClient) RunCommand(ctx context.Context, device, name string) error {
	ups, err := c.ups(ctx, device)
	if err != nil {
		return err
	}
	if _, err := ups.SendCommand(name); err != nil {
		return fmt.Errorf("run command %q on %q: %w", name, device, err)
	}
	return nil
}

func (c *gonutClient) SetVariable(ctx context.Context, device, name, value string) error {
	ups, err := c.ups(ctx, device)
	if err != nil {
		return err
	}
	if _, err := ups.SetVariable(name, value); err != nil {
		return fmt.Errorf("set variable %q on %q: %w", name, device, err)
	}
	return nil
}

func (c *gonutClient) Close() error {
	if _, err := c.conn.Disconnect(); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

func (c *gonutClient) ups(ctx context.Context, device string) (gonut.UPS, error) {
	if err := ctx.Err(); err != nil {
		return gonut.UPS{}, err
	}
	ups, err := gonut.NewUPS(device, &c.conn)
	if err != nil {
		return gonut.UPS{}, fmt.Errorf("open device %q: %w", device, err)
	}
	return ups, nil
}
