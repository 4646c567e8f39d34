// Command wudoohctl edits the shared settings database. A running
// wudooh daemon picks changes up on its own by watching the database;
// -notify additionally pushes a message through the daemon's relay for
// an immediate refresh.
//
// Usage:
//
//	wudoohctl [-db wudooh.db] show
//	wudoohctl size 150
//	wudoohctl height 120
//	wudoohctl font "Amiri"
//	wudoohctl on | off
//	wudoohctl whitelist quran.com | unwhitelist quran.com
//	wudoohctl override poetry.example 150 120 Original
//	wudoohctl addfont "Aref Ruqaa" https://fonts.example/aref.woff2
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/wudooh"
	"github.com/hazyhaar/wudooh/fontface"
	"github.com/hazyhaar/wudooh/restyle"
	"github.com/hazyhaar/wudooh/settings"
)

func main() {
	dbPath := flag.String("db", "wudooh.db", "settings database path")
	notify := flag.String("notify", "", "relay address to push the change to (e.g. 127.0.0.1:7878)")
	flag.Parse()

	if err := run(*dbPath, *notify, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "wudoohctl:", err)
		os.Exit(1)
	}
}

func run(dbPath, notify string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command; see -h")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := settings.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	store := settings.NewStore(db, nil)
	if err := store.EnsureDefaults(ctx); err != nil {
		return err
	}

	st, err := store.Load(ctx)
	if err != nil {
		return err
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "show":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)

	case "size":
		n, err := intArg(rest, "size")
		if err != nil {
			return err
		}
		if err := store.Set(ctx, "textSize", n); err != nil {
			return err
		}
		st.TextSize = n

	case "height":
		n, err := intArg(rest, "height")
		if err != nil {
			return err
		}
		if err := store.Set(ctx, "lineHeight", n); err != nil {
			return err
		}
		st.LineHeight = n

	case "font":
		if len(rest) != 1 {
			return fmt.Errorf("usage: font <name>")
		}
		if err := store.Set(ctx, "font", rest[0]); err != nil {
			return err
		}
		st.Font = rest[0]

	case "on", "off":
		if err := store.Set(ctx, "onOff", cmd == "on"); err != nil {
			return err
		}

	case "whitelist":
		if len(rest) != 1 {
			return fmt.Errorf("usage: whitelist <host>")
		}
		if !slices.Contains(st.Whitelist, rest[0]) {
			st.Whitelist = append(st.Whitelist, rest[0])
		}
		if err := store.Set(ctx, "whitelisted", st.Whitelist); err != nil {
			return err
		}

	case "unwhitelist":
		if len(rest) != 1 {
			return fmt.Errorf("usage: unwhitelist <host>")
		}
		st.Whitelist = slices.DeleteFunc(st.Whitelist, func(h string) bool { return h == rest[0] })
		if err := store.Set(ctx, "whitelisted", st.Whitelist); err != nil {
			return err
		}

	case "override":
		if len(rest) != 4 {
			return fmt.Errorf("usage: override <host> <size> <height> <font>")
		}
		size, err1 := strconv.Atoi(rest[1])
		height, err2 := strconv.Atoi(rest[2])
		if err1 != nil || err2 != nil {
			return fmt.Errorf("size and height must be integers")
		}
		o := settings.SiteOverride{URL: rest[0], TextSize: size, LineHeight: height, Font: rest[3]}
		i := slices.IndexFunc(st.CustomSettings, func(s settings.SiteOverride) bool { return s.URL == o.URL })
		if i >= 0 {
			st.CustomSettings[i] = o
		} else {
			st.CustomSettings = append(st.CustomSettings, o)
		}
		if err := store.Set(ctx, "customSettings", st.CustomSettings); err != nil {
			return err
		}

	case "addfont":
		if len(rest) < 1 || len(rest) > 2 {
			return fmt.Errorf("usage: addfont <name> [url]")
		}
		f := fontface.Descriptor{Name: rest[0]}
		if len(rest) == 2 {
			f.URL = rest[1]
		}
		st.CustomFonts = append(st.CustomFonts, f)
		if err := store.Set(ctx, "customFonts", st.CustomFonts); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	if notify != "" {
		return push(ctx, notify, st)
	}
	return nil
}

func intArg(rest []string, name string) (int, error) {
	if len(rest) != 1 {
		return 0, fmt.Errorf("usage: %s <percent>", name)
	}
	n, err := strconv.Atoi(rest[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

// push sends the updated preferences straight to a running daemon.
func push(ctx context.Context, addr string, st settings.Settings) error {
	p := restyle.Params{TextSize: st.TextSize, LineHeight: st.LineHeight, Font: st.Font}
	for _, msg := range []wudooh.Message{
		wudooh.UpdateAllText(p),
		wudooh.InjectCustomFonts(st.CustomFonts),
	} {
		payload, err := msg.Encode()
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			"http://"+addr+"/v1/message", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("notify %s: %w", addr, err)
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("notify %s: status %d", addr, resp.StatusCode)
		}
	}
	return nil
}
