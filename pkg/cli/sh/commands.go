package sh

import (
	"context"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/mojo.go/pkg/mojo"
	"github.com/robotalks/mojo.go/pkg/mojo/serial"
)

var (
	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"list", "l"},
		Help:    "list serial ports",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if s.Config.Simulate {
				names, err := s.Config.PortLister()()
				if err != nil {
					s.fail(c, err)
					return
				}
				s.printPorts(c, names)
				return
			}
			ports, err := serial.ListPorts()
			if err != nil {
				s.fail(c, err)
				return
			}
			if s.OutputJSON {
				s.printJSON(c, ports)
				return
			}
			for _, p := range ports {
				if p.IsUSB {
					c.Printf("%s\t%s:%s %s\n", p.Name, p.VID, p.PID, p.Product)
				} else {
					c.Println(p.Name)
				}
			}
		},
	}

	// PortCmd selects the port.
	PortCmd = ishell.Cmd{
		Name:    "port",
		Aliases: []string{"p"},
		Help:    "[NAME] select or show the port",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.SelectPort(c.Args[0])
				return
			}
			if s.Config.Port == "" {
				s.fail(c, fmt.Errorf("no port selected"))
				return
			}
			c.Println(s.Config.Port)
		},
	}

	// VerifyCmd toggles flash verification.
	VerifyCmd = ishell.Cmd{
		Name: "verify",
		Help: "[on|off] verify flash after writing",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				switch strings.ToLower(c.Args[0]) {
				case "on", "true", "1":
					s.Config.Verify = true
				case "off", "false", "0":
					s.Config.Verify = false
				default:
					s.fail(c, fmt.Errorf("invalid value %q, expect on or off", c.Args[0]))
					return
				}
			}
			c.Printf("verify: %v\n", s.Config.Verify)
		},
	}

	// ShowCmd prints current settings.
	ShowCmd = ishell.Cmd{
		Name: "show",
		Help: "show current settings",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			settings := map[string]interface{}{
				"port":     s.Config.Port,
				"flash":    s.Config.Flash,
				"verify":   s.Config.Verify,
				"simulate": s.Config.Simulate,
				"status":   s.Config.StatusURL,
				"busy":     s.Config.Port != "" && s.Loader.Busy(s.Config.Port),
			}
			if s.OutputJSON {
				s.printJSON(c, settings)
				return
			}
			for _, key := range []string{"port", "flash", "verify", "simulate", "status", "busy"} {
				c.Printf("%-9s %v\n", key+":", settings[key])
			}
		},
	}

	// EraseCmd clears the flash.
	EraseCmd = ishell.Cmd{
		Name:    "erase",
		Aliases: []string{"e"},
		Help:    "clear the flash",
		Func: MustHavePort(func(c *ishell.Context) {
			s := ShellFrom(c)
			s.report(c, s.RunOperation(func(ctx context.Context, l *mojo.Loader) (*mojo.Operation, error) {
				return l.EraseFlash(ctx, s.Config.Port)
			}))
		}),
	}

	// LoadCmd configures the FPGA without touching the flash.
	LoadCmd = ishell.Cmd{
		Name: "load",
		Help: "FILE configure the FPGA with a bin file",
		Func: MustHavePort(func(c *ishell.Context) {
			ShellFrom(c).upload(c, mojo.ModeVolatile)
		}),
	}

	// FlashCmd writes a bin file to flash.
	FlashCmd = ishell.Cmd{
		Name:    "flash",
		Aliases: []string{"f"},
		Help:    "FILE write a bin file to flash and start it",
		Func: MustHavePort(func(c *ishell.Context) {
			ShellFrom(c).upload(c, mojo.ModeFlash)
		}),
	}

	// UploadCmd writes a bin file to flash or RAM as configured by -flash.
	UploadCmd = ishell.Cmd{
		Name:    "upload",
		Aliases: []string{"u"},
		Help:    "FILE load a bin file, to flash if the flash setting is on",
		Func: MustHavePort(func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) < 1 {
				s.fail(c, fmt.Errorf("FILE required"))
				return
			}
			s.report(c, s.UploadFile(c.Args[0]))
		}),
	}
)

// Upload loads the bin file at path onto the selected port.
func (s *Shell) Upload(path string, mode mojo.Mode) error {
	req, err := mojo.LoadRequest(path, mode, s.Config.Verify)
	if err != nil {
		return err
	}
	return s.RunOperation(func(ctx context.Context, l *mojo.Loader) (*mojo.Operation, error) {
		return l.Upload(ctx, s.Config.Port, req)
	})
}

// UploadFile loads the bin file at path, to flash or RAM following
// the flash setting.
func (s *Shell) UploadFile(path string) error {
	return s.Upload(path, s.Config.Mode())
}

func (s *Shell) upload(c *ishell.Context, mode mojo.Mode) {
	if len(c.Args) < 1 {
		s.fail(c, fmt.Errorf("FILE required"))
		return
	}
	s.report(c, s.Upload(c.Args[0], mode))
}

func (s *Shell) report(c *ishell.Context, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.OutputJSON {
		s.printJSON(c, map[string]interface{}{"port": s.Config.Port, "result": "ok"})
		return
	}
	c.Println("OK")
}

func (s *Shell) printPorts(c *ishell.Context, names []string) {
	if s.OutputJSON {
		s.printJSON(c, names)
		return
	}
	for _, name := range names {
		c.Println(name)
	}
}
