package sh

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/cfboot/pkg/loader"
	"github.com/robotalks/cfboot/pkg/protocol"
)

// ParseInts parses exactly n integer arguments, decimal or 0x-prefixed.
func ParseInts(args []string, n int) ([]int, error) {
	if len(args) < n {
		return nil, fmt.Errorf("%d arguments expected", n)
	}
	vals := make([]int, n)
	for i := range vals {
		val, err := strconv.ParseInt(args[i], 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", args[i])
		}
		vals[i] = int(val)
	}
	return vals, nil
}

// FormatInfo prints Info into friendly string for display.
func FormatInfo(info protocol.Info) string {
	return fmt.Sprintf("version %#02x: %d pages of %d bytes, writable from page %d, %d buffer pages",
		info.Version, info.FlashPages, info.PageSize, info.FlashStart, info.BufferPages)
}

// FormatMapping prints sector mapping pairs.
func FormatMapping(mapping []byte) string {
	var str string
	for i := 0; i+1 < len(mapping); i += 2 {
		if str != "" {
			str += ", "
		}
		str += fmt.Sprintf("%d x %dKiB", mapping[i], mapping[i+1])
	}
	return str
}

var (
	// ConnectCmd opens a link.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			url := s.Config.LinkURL
			if len(c.Args) > 0 {
				url = c.Args[0]
			}
			if err := s.Connect(url); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd closes the current link.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// InfoCmd queries the bootloader layout.
	InfoCmd = ishell.Cmd{
		Name:    "info",
		Aliases: []string{"i"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			info, err := s.Conn.Client.GetInfo(s.Conn.Ctx)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, info, FormatInfo(info))
		}),
	}

	// MappingCmd queries the sector mapping.
	MappingCmd = ishell.Cmd{
		Name:    "mapping",
		Aliases: []string{"m"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			mapping, err := s.Conn.Client.GetMapping(s.Conn.Ctx)
			if err != nil {
				c.Err(err)
				return
			}
			pairs := make([]int, len(mapping))
			for i, b := range mapping {
				pairs[i] = int(b)
			}
			s.Print(c, pairs, FormatMapping(mapping))
		}),
	}

	// StatusCmd queries the flash status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			st, err := s.Conn.Client.FlashStatus(s.Conn.Ctx)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, st, fmt.Sprintf("done=%v error=%s", st.Done, st.Error))
		}),
	}

	// LoadCmd copies bytes into a staging page.
	LoadCmd = ishell.Cmd{
		Name:    "load",
		Aliases: []string{"l"},
		Help:    "PAGE ADDR HEX",
		Func: MustBeConnected(func(c *ishell.Context) {
			vals, err := ParseInts(c.Args, 2)
			if err != nil || len(c.Args) < 3 {
				c.Err(fmt.Errorf("usage: load PAGE ADDR HEX"))
				return
			}
			data, err := hex.DecodeString(c.Args[2])
			if err != nil {
				c.Err(err)
				return
			}
			if err = ShellFrom(c).Conn.Client.LoadBuffer(vals[0], vals[1], data); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// WriteCmd commits staging pages to flash.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "BUFPAGE FLASHPAGE COUNT",
		Func: MustBeConnected(func(c *ishell.Context) {
			vals, err := ParseInts(c.Args, 3)
			if err != nil {
				c.Err(fmt.Errorf("usage: write BUFPAGE FLASHPAGE COUNT"))
				return
			}
			s := ShellFrom(c)
			if err = s.Conn.Client.WriteFlash(s.Conn.Ctx, vals[0], vals[1], vals[2]); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// FlashCmd writes an image file.
	FlashCmd = ishell.Cmd{
		Name:    "flash",
		Aliases: []string{"f"},
		Help:    "FILE [PAGE]",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("usage: flash FILE [PAGE]"))
				return
			}
			page := protocol.FlashStartPage
			if len(c.Args) > 1 {
				vals, err := ParseInts(c.Args[1:], 1)
				if err != nil {
					c.Err(err)
					return
				}
				page = vals[0]
			}
			image, err := ioutil.ReadFile(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			err = s.Conn.Client.Flash(s.Conn.Ctx, image, page, func(p loader.Progress) {
				if s.Interactive && !s.OutputJSON {
					c.Printf("\r%d/%d pages", p.Written, p.Total)
				}
			})
			if s.Interactive && !s.OutputJSON {
				c.Println()
			}
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, map[string]interface{}{"bytes": len(image), "page": page},
				fmt.Sprintf("%d bytes written at page %d", len(image), page))
		}),
	}
)
