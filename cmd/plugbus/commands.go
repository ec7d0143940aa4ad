package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/plugbus/internal/api"
	"github.com/mattjoyce/plugbus/internal/catalog"
	"github.com/mattjoyce/plugbus/internal/config"
	"github.com/mattjoyce/plugbus/internal/doctor"
	"github.com/mattjoyce/plugbus/internal/tenant"
)

// splitPositional separates leading positional arguments from flags so that
// "tenant create acme --name Acme" parses the same as flags-first input.
func splitPositional(args []string) (positional, flags []string) {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return positional, args[i:]
		}
		positional = append(positional, arg)
	}
	return positional, nil
}

// --- CONFIG ---

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	integrity, err := config.VerifyIntegrity(resolved)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Integrity check failed to run: %v\n", err)
		return 1
	}

	h, err := openHostFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open host: %v\n", err)
		return 1
	}
	defer h.Close()

	result := h.Doctor().WithIntegrity(integrity).Validate()
	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid || (*strict && len(result.Warnings) > 0) {
		return 1
	}
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	verbose := fs.Bool("verbose", false, "Print every hashed file")
	fs.BoolVar(verbose, "v", false, "Print every hashed file (shorthand)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	target := *configPath
	if target == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		target = discovered
	}

	reports, err := config.Lock(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lock failed: %v\n", err)
		return 1
	}

	files := 0
	for _, report := range reports {
		if *verbose {
			fmt.Printf("Processing directory: %s\n", report.ConfigDir)
		}
		for _, f := range report.Files {
			if !f.Exists {
				if *verbose {
					fmt.Printf("  SKIP %s: not found\n", f.Filename)
				}
				continue
			}
			files++
			if *verbose {
				fmt.Printf("  HASH %s: %s\n", f.Filename, f.Hash)
			}
		}
		if *verbose && report.Written {
			fmt.Printf("  WROTE %s\n", report.ChecksumPath)
		}
	}
	fmt.Printf("Locked %d file(s) in %d director(ies)\n", files, len(reports))
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	shown := *cfg
	if shown.API.Auth.APIKey != "" {
		shown.API.Auth.APIKey = "<redacted>"
	}
	shown.Include = nil

	if *jsonOut {
		return printJSON(shown)
	}
	data, err := yaml.Marshal(shown)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render YAML: %v\n", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

// --- TENANTS ---

func runTenantList(args []string) int {
	fs := flag.NewFlagSet("tenant list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	ctx := context.Background()
	h, err := openHost(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open host: %v\n", err)
		return 1
	}
	defer h.Close()

	tenants, err := h.Tenants.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list tenants: %v\n", err)
		return 1
	}

	out := make([]api.TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		enabled, err := h.Tenants.EnabledComponents(ctx, t.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read components of %s: %v\n", t.ID, err)
			return 1
		}
		if enabled == nil {
			enabled = []string{}
		}
		out = append(out, api.TenantResponse{ID: t.ID, Name: t.Name, Components: enabled})
	}

	if *jsonOut {
		return printJSON(out)
	}
	rows := make([][]string, 0, len(out))
	for _, t := range out {
		rows = append(rows, []string{t.ID, t.Name, joinOrDash(t.Components)})
	}
	fmt.Println(renderTable([]string{"TENANT", "NAME", "ENABLED COMPONENTS"}, rows))
	return 0
}

func runTenantCreate(args []string) int {
	positional, rest := splitPositional(args)
	fs := flag.NewFlagSet("tenant create", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	name := fs.String("name", "", "Display name")
	if err := fs.Parse(rest); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	positional = append(positional, fs.Args()...)
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: plugbus tenant create <id> [--name NAME] [--config PATH]")
		return 1
	}
	id := positional[0]

	ctx := context.Background()
	h, err := openHost(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open host: %v\n", err)
		return 1
	}
	defer h.Close()

	if err := h.Tenants.Upsert(ctx, tenant.Tenant{ID: id, Name: strings.TrimSpace(*name)}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save tenant: %v\n", err)
		return 1
	}
	fmt.Printf("Tenant %s saved\n", id)
	return 0
}

func runTenantToggle(args []string, enable bool) int {
	action := "disable"
	if enable {
		action = "enable"
	}

	positional, rest := splitPositional(args)
	fs := flag.NewFlagSet("tenant "+action, flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(rest); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	positional = append(positional, fs.Args()...)
	if len(positional) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: plugbus tenant %s <tenant> <component> [--config PATH]\n", action)
		return 1
	}
	tenantID, componentID := positional[0], positional[1]

	ctx := context.Background()
	h, err := openHost(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open host: %v\n", err)
		return 1
	}
	defer h.Close()

	if _, err := h.Tenants.Get(ctx, tenantID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	c, ok := h.Components.Lookup(componentID)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: component %q is not installed\n", componentID)
		return 1
	}
	if c.Core {
		fmt.Fprintf(os.Stderr, "Error: component %q is core and always enabled\n", componentID)
		return 1
	}
	if !c.Compatible() {
		fmt.Fprintf(os.Stderr, "Warning: component %q is incompatible and will not run: %s\n",
			componentID, strings.Join(c.CompatibilityErrors, "; "))
	}

	if enable {
		err = h.Tenants.Enable(ctx, tenantID, componentID)
	} else {
		err = h.Tenants.Disable(ctx, tenantID, componentID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to %s component: %v\n", action, err)
		return 1
	}
	fmt.Printf("Component %s %sd for tenant %s\n", componentID, action, tenantID)
	return 0
}

// --- COMPONENTS / CHANNELS ---

func runComponentList(args []string) int {
	fs := flag.NewFlagSet("component list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	h, err := openHost(context.Background(), *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open host: %v\n", err)
		return 1
	}
	defer h.Close()

	all := h.Components.All()
	if *jsonOut {
		out := make([]api.ComponentResponse, 0, len(all))
		for _, c := range all {
			out = append(out, api.ComponentResponse{
				ID:                  c.ID,
				Name:                c.Name,
				Version:             c.Version,
				Source:              string(c.Source),
				Core:                c.Core,
				Compatible:          c.Compatible(),
				CompatibilityErrors: c.CompatibilityErrors,
			})
		}
		return printJSON(out)
	}

	rows := make([][]string, 0, len(all))
	for _, c := range all {
		kind := "optional"
		if c.Core {
			kind = "core"
		}
		rows = append(rows, []string{
			c.ID,
			c.Version,
			string(c.Source),
			kind,
			statusText(c.Compatible(), "ok", strings.Join(c.CompatibilityErrors, "; ")),
		})
	}
	fmt.Println(renderTable([]string{"COMPONENT", "VERSION", "SOURCE", "KIND", "COMPATIBILITY"}, rows))
	return 0
}

func runChannelList(args []string) int {
	fs := flag.NewFlagSet("channel list", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	h, err := openHost(context.Background(), *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open host: %v\n", err)
		return 1
	}
	defer h.Close()

	channels := h.Channels.Channels()
	out := make([]api.ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		resp := api.ChannelResponse{
			Name:          ch.Name,
			Description:   ch.Description,
			PayloadFields: ch.PayloadFields,
			Handlers:      []api.HandlerResponse{},
		}
		for _, hd := range ch.Handlers() {
			owner, _ := h.Resolver.OwnerOf(hd.Origin)
			resp.Handlers = append(resp.Handlers, api.HandlerResponse{ID: hd.ID, Origin: hd.Origin, Owner: owner})
		}
		out = append(out, resp)
	}
	if *jsonOut {
		return printJSON(out)
	}

	rows := make([][]string, 0, len(out))
	for _, ch := range out {
		if len(ch.Handlers) == 0 {
			rows = append(rows, []string{ch.Name, newTheme().Dim.Render("(none)"), "-"})
			continue
		}
		for i, hd := range ch.Handlers {
			name := ch.Name
			if i > 0 {
				name = ""
			}
			owner := hd.Owner
			if owner == "" {
				owner = statusText(false, "", "unowned")
			}
			rows = append(rows, []string{name, hd.ID, owner})
		}
	}
	fmt.Println(renderTable([]string{"CHANNEL", "HANDLER", "OWNER"}, rows))
	return 0
}

// --- SEND ---

func runSend(args []string) int {
	positional, rest := splitPositional(args)
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	tenantID := fs.String("tenant", "", "Sending tenant id (required)")
	payload := fs.String("payload", "", "JSON payload")
	payloadFile := fs.String("payload-file", "", "Read the JSON payload from a file")
	if err := fs.Parse(rest); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	positional = append(positional, fs.Args()...)
	if len(positional) != 1 || *tenantID == "" {
		fmt.Fprintln(os.Stderr, "Usage: plugbus send <channel> --tenant <id> [--payload JSON | --payload-file PATH] [--config PATH]")
		return 1
	}
	if *payload != "" && *payloadFile != "" {
		fmt.Fprintln(os.Stderr, "Error: --payload and --payload-file are mutually exclusive")
		return 1
	}
	channelName := positional[0]

	raw := json.RawMessage(*payload)
	if *payloadFile != "" {
		data, err := os.ReadFile(*payloadFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read payload: %v\n", err)
			return 1
		}
		raw = data
	}

	ctx := context.Background()
	h, err := openHost(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open host: %v\n", err)
		return 1
	}
	defer h.Close()

	res, sendErr := h.SendJSON(ctx, channelName, *tenantID, raw)
	resp := api.SendResponse{
		Channel:   channelName,
		Tenant:    *tenantID,
		Handlers:  res.HandlerIDs(),
		Responses: make([]json.RawMessage, 0, len(res)),
	}
	for _, v := range res.Values() {
		b, err := json.Marshal(v)
		if err != nil {
			b = json.RawMessage(`null`)
		}
		resp.Responses = append(resp.Responses, b)
	}
	if sendErr == nil {
		resp.Result, sendErr = catalog.Summarize(channelName, raw, res)
	}
	if sendErr != nil {
		resp.Error = sendErr.Error()
	}

	if code := printJSON(resp); code != 0 {
		return code
	}
	if sendErr != nil {
		fmt.Fprintf(os.Stderr, "Send failed: %v\n", sendErr)
		return 1
	}
	return 0
}
