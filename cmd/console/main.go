package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Iwinswap/lockable-token-registry-go/cmd/console/config"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/lockable"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	"github.com/Iwinswap/lockable-token-registry-go/streams/jsonrpc/client"
	"github.com/ethereum/go-ethereum/common"
)

// --- VISUAL CONSTANTS ---
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[37m"

	DefaultClientEventBufferSize = 100
	recentEventsLimit            = 50
	callTimeout                  = 5 * time.Second
)

// header prints a styled section header
func header(title string) {
	fmt.Println("\n" + Bold + Cyan + ":: " + title + " ::" + Reset)
}

// RecentEvents is a thread-safe ring of the latest committed events.
type RecentEvents struct {
	mu     sync.RWMutex
	events []lockable.Event
	total  uint64
}

func (r *RecentEvents) Add(ev lockable.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if len(r.events) > recentEventsLimit {
		r.events = r.events[len(r.events)-recentEventsLimit:]
	}
	r.total++
}

// Since returns the events received after the first `seen` ones, and the new total.
func (r *RecentEvents) Since(seen uint64) ([]lockable.Event, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	missed := r.total - seen
	if missed > uint64(len(r.events)) {
		missed = uint64(len(r.events))
	}
	out := make([]lockable.Event, missed)
	copy(out, r.events[uint64(len(r.events))-missed:])
	return out, r.total
}

type console struct {
	ctx    context.Context
	reg    *client.Registry
	events *RecentEvents
	sender common.Address
	reader *bufio.Reader
}

func main() {
	configPath := flag.String("config", "", "Path to the console YAML file.")
	url := flag.String("url", "", "WebSocket endpoint of registryd. Overrides the config file.")
	senderHex := flag.String("sender", "", "Address mutating commands act as. Overrides the config file.")
	flag.Parse()

	// --- 1. SETUP LOGGING (To File) ---
	logFile, err := os.OpenFile("console.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("Failed to open log file: %v", err))
	}
	defer logFile.Close()

	rootLogger := slog.New(slog.NewJSONHandler(logFile, nil))

	closeApp := func() {
		fmt.Println("\n" + Red + "Fatal error occurred. Check console.log for details." + Reset)
		os.Exit(1)
	}

	cfg := &config.ConsoleConfig{RPCURL: config.DefaultRPCURL}
	if *configPath != "" {
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			rootLogger.Error("Failed to load config", "path", *configPath, "error", err)
			closeApp()
		}
	}
	if *url != "" {
		cfg.RPCURL = *url
	}
	if *senderHex != "" {
		if !common.IsHexAddress(*senderHex) {
			rootLogger.Error("Invalid sender address", "sender", *senderHex)
			closeApp()
		}
		cfg.Sender = common.HexToAddress(*senderHex)
	}
	if err := cfg.Validate(); err != nil {
		rootLogger.Error("Invalid configuration", "error", err)
		closeApp()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. INITIALIZE CLIENTS ---
	reg, err := client.DialRegistry(ctx, cfg.RPCURL)
	if err != nil {
		rootLogger.Error("Failed to connect to registryd", "url", cfg.RPCURL, "error", err)
		closeApp()
	}
	defer reg.Close()

	stream, err := client.NewClient(ctx, client.Config{
		URL:        cfg.RPCURL,
		Logger:     rootLogger.With("component", "jsonrpc-client"),
		BufferSize: DefaultClientEventBufferSize,
	})
	if err != nil {
		rootLogger.Error("Failed to initialize event client", "error", err)
		closeApp()
	}

	// --- 3. START CONSOLE & EVENT LOOP ---
	events := &RecentEvents{}
	c := &console{ctx: ctx, reg: reg, events: events, sender: cfg.Sender, reader: bufio.NewReader(os.Stdin)}

	fmt.Println(Green + "Starting Registry Console..." + Reset)
	fmt.Println("Logs are being written to 'console.log'")
	go c.run()

	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			events.Add(ev)

		case err := <-stream.Err():
			rootLogger.Error("Fatal client error", "error", err)
			closeApp()

		case <-ctx.Done():
			fmt.Println("\n" + Yellow + "Shutting down..." + Reset)
			return
		}
	}
}

// run handles user input and display.
func (c *console) run() {
	time.Sleep(500 * time.Millisecond)

	for {
		if c.ctx.Err() != nil {
			return
		}

		printMenu(c.sender)

		fmt.Print(Bold + "Enter selection: " + Reset)
		input, err := c.reader.ReadString('\n')
		if err != nil {
			fmt.Println("Error reading input:", err)
			continue
		}

		c.handleCommand(strings.TrimSpace(input))

		fmt.Println("\n" + Gray + "[Press Enter to continue]" + Reset)
		c.reader.ReadString('\n')
	}
}

func printMenu(sender common.Address) {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(Bold + "LOCKABLE TOKEN REGISTRY CONSOLE" + Reset + Gray + " | v0.1.0" + Reset)
	if sender != (common.Address{}) {
		fmt.Println(Gray + "Acting as " + sender.Hex() + Reset)
	}
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %s1.%s Registry Summary\n", Cyan, Reset)
	fmt.Printf(" %s2.%s Inspect Token  %s(by Registry/ID)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s3.%s Tokens of Owner\n", Cyan, Reset)
	fmt.Printf(" %s4.%s Check Transfer %s(to Address)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s5.%s Watch Events   %s(Live Monitor)%s\n", Cyan, Reset, Gray, Reset)
	fmt.Printf(" %s6.%s Lock Token\n", Cyan, Reset)
	fmt.Printf(" %s7.%s Release Locked Token\n", Cyan, Reset)
	fmt.Printf(" %s8.%s Transfer Token\n", Cyan, Reset)
	fmt.Println(Gray + "-----------------------------------" + Reset)
	fmt.Printf(" %sh.%s Help\n", Yellow, Reset)
	fmt.Printf(" %sq.%s Quit\n", Red, Reset)
	fmt.Println("")
}

func (c *console) handleCommand(input string) {
	switch input {
	case "1":
		c.printRegistrySummary()
	case "2":
		c.inspectToken()
	case "3":
		c.tokensOfOwner()
	case "4":
		c.checkTransfer()
	case "5":
		c.watchEvents()
	case "6", "7", "8":
		if c.sender == (common.Address{}) {
			fmt.Println(Yellow + "[INFO] Start the console with --sender to run mutating commands." + Reset)
			return
		}
		switch input {
		case "6":
			c.lockToken()
		case "7":
			c.releaseLockedToken()
		case "8":
			c.transferToken()
		}
	case "h":
		printHelp()
	case "q":
		exitConsole()
	default:
		fmt.Println(Red + "Unknown command." + Reset)
	}
}

// --- COMMAND HANDLERS ---

func printHelp() {
	fmt.Print("\033[H\033[2J")

	header("LOCKABLE TOKEN REGISTRIES")
	fmt.Println(Bold + "Dependencies" + Reset)
	fmt.Println("   A token may " + Cyan + "depend" + Reset + " on tokens in any registry. It can only be moved")
	fmt.Println("   or burned while each of its dependencies is transferable (or burnable).")
	fmt.Println("   A token's whitelist lifts only its " + Yellow + "own" + Reset + " non-transferable flag.")
	fmt.Println("")
	fmt.Println(Bold + "Locks" + Reset)
	fmt.Println("   A token " + Cyan + "locked" + Reset + " to another follows it: transfers and burns of the")
	fmt.Println("   locking token cascade to every locked token. A locked token answers only")
	fmt.Println("   to the registry of its locking token; its owner cannot move it directly.")
	fmt.Println("   Release it from the locking side (command 7).")
	fmt.Println("")
	fmt.Println(Bold + "Atomicity" + Reset)
	fmt.Println("   Every command is one transaction. If any cascaded step fails, nothing")
	fmt.Println("   changes and no event is published.")
	fmt.Println(Gray + "---------------------------------------------------------------" + Reset)
}

func (c *console) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.ctx, callTimeout)
}

func (c *console) printRegistrySummary() {
	ctx, cancel := c.callCtx()
	defer cancel()

	registries, err := c.reg.Registries(ctx)
	if err != nil {
		printError(err)
		return
	}

	header("REGISTRY SUMMARY")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "REGISTRY\tTOKENS\tLOCKED\t")
	fmt.Fprintln(w, "--------\t------\t------\t")
	for _, addr := range registries {
		set, err := c.reg.Index(ctx, addr)
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\t\t\n", addr.Hex(), Red+"ERROR"+Reset)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t\n", addr.Hex(), set.Len(), len(set.Locked()))
	}
	w.Flush()
}

func (c *console) inspectToken() {
	ref, ok := c.readRef("[Inspect] Enter Token (registry/id): ")
	if !ok {
		return
	}
	ctx, cancel := c.callCtx()
	defer cancel()

	view, err := c.reg.Token(ctx, ref.Registry, ref.ID())
	if err != nil {
		printError(err)
		return
	}
	transferable, err := c.reg.IsTokenTransferable(ctx, ref.Registry, ref.ID())
	if err != nil {
		printError(err)
		return
	}
	burnable, err := c.reg.IsTokenBurnable(ctx, ref.Registry, ref.ID())
	if err != nil {
		printError(err)
		return
	}
	printToken(ref, view, transferable, burnable)
}

func (c *console) tokensOfOwner() {
	owner, ok := c.readAddress("[Owner] Enter Owner Address: ")
	if !ok {
		return
	}
	ctx, cancel := c.callCtx()
	defer cancel()

	registries, err := c.reg.Registries(ctx)
	if err != nil {
		printError(err)
		return
	}

	header("TOKENS OF " + owner.Hex())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tLOCKED TO\tDEPENDENCIES\t")
	fmt.Fprintln(w, "-----\t---------\t------------\t")
	found := 0
	for _, addr := range registries {
		set, err := c.reg.Index(ctx, addr)
		if err != nil {
			printError(err)
			return
		}
		for _, t := range set.ByOwner(owner) {
			lockedTo := "-"
			if t.LockedTo != nil {
				lockedTo = t.LockedTo.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t\n", tokenref.New(addr, t.ID), lockedTo, len(t.Dependencies))
			found++
		}
	}
	w.Flush()
	if found == 0 {
		fmt.Println(Yellow + "[INFO] No tokens found." + Reset)
	}
}

func (c *console) checkTransfer() {
	ref, ok := c.readRef("[Check] Enter Token (registry/id): ")
	if !ok {
		return
	}
	dest, ok := c.readAddress("[Check] Enter Destination Address: ")
	if !ok {
		return
	}
	ctx, cancel := c.callCtx()
	defer cancel()

	allowed, err := c.reg.IsTokenTransferableToAddress(ctx, ref.Registry, ref.ID(), dest)
	if err != nil {
		printError(err)
		return
	}
	if allowed {
		fmt.Printf("%s%s may move to %s%s\n", Green, ref, dest.Hex(), Reset)
	} else {
		fmt.Printf("%s%s may NOT move to %s%s\n", Red, ref, dest.Hex(), Reset)
	}
}

func (c *console) watchEvents() {
	fmt.Println(Green + "Starting Live Watch... (Press 'Enter' to stop)" + Reset)
	time.Sleep(1 * time.Second)

	stopCh := make(chan struct{})
	go func() {
		c.reader.ReadString('\n')
		close(stopCh)
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	backlog, seen := c.events.Since(0)
	fmt.Print("\033[H\033[2J")
	fmt.Println(Bold + "--- LIVE MONITOR ---" + Reset)
	fmt.Println(Gray + "Press ENTER to return to menu." + Reset)
	for _, ev := range backlog {
		printEvent(ev)
	}

	for {
		select {
		case <-stopCh:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			var fresh []lockable.Event
			fresh, seen = c.events.Since(seen)
			for _, ev := range fresh {
				printEvent(ev)
			}
		}
	}
}

func (c *console) lockToken() {
	ref, ok := c.readRef("[Lock] Enter Token to lock (registry/id): ")
	if !ok {
		return
	}
	locking, ok := c.readRef("[Lock] Enter Locking Token (registry/id): ")
	if !ok {
		return
	}
	ctx, cancel := c.callCtx()
	defer cancel()
	receipt, err := c.reg.Lock(ctx, c.sender, ref.Registry, ref.ID(), locking)
	printReceipt(receipt.Tx, err)
}

func (c *console) releaseLockedToken() {
	locking, ok := c.readRef("[Release] Enter Locking Token (registry/id): ")
	if !ok {
		return
	}
	locked, ok := c.readRef("[Release] Enter Locked Token (registry/id): ")
	if !ok {
		return
	}
	ctx, cancel := c.callCtx()
	defer cancel()
	receipt, err := c.reg.RemoveLockedToken(ctx, c.sender, locking.Registry, locking.ID(), locked)
	printReceipt(receipt.Tx, err)
}

func (c *console) transferToken() {
	ref, ok := c.readRef("[Transfer] Enter Token (registry/id): ")
	if !ok {
		return
	}
	dest, ok := c.readAddress("[Transfer] Enter Destination Address: ")
	if !ok {
		return
	}
	ctx, cancel := c.callCtx()
	defer cancel()

	owner, err := c.reg.OwnerOf(ctx, ref.Registry, ref.ID())
	if err != nil {
		printError(err)
		return
	}
	receipt, err := c.reg.TransferFrom(ctx, c.sender, ref.Registry, owner, dest, ref.ID())
	printReceipt(receipt.Tx, err)
}

// --- HELPERS ---

func (c *console) readRef(prompt string) (tokenref.Ref, bool) {
	fmt.Print("\n" + Bold + prompt + Reset)
	input, _ := c.reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return tokenref.Ref{}, false
	}
	ref, err := tokenref.Parse(input)
	if err != nil {
		fmt.Printf(Red+"[ERROR] %v%s\n", err, Reset)
		return tokenref.Ref{}, false
	}
	return ref, true
}

func (c *console) readAddress(prompt string) (common.Address, bool) {
	fmt.Print("\n" + Bold + prompt + Reset)
	input, _ := c.reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		if input != "" {
			fmt.Println(Red + "[ERROR] Invalid address." + Reset)
		}
		return common.Address{}, false
	}
	return common.HexToAddress(input), true
}

func printToken(ref tokenref.Ref, view lockable.TokenView, transferable, burnable bool) {
	printField := func(key string, value any) {
		fmt.Printf("  %s%-15s%s %v\n", Gray, key+":", Reset, value)
	}
	flag := func(ok bool) string {
		if ok {
			return Green + "yes" + Reset
		}
		return Red + "no" + Reset
	}

	header("TOKEN " + ref.String())
	printField("Owner", view.Owner.Hex())
	if view.Approved != (common.Address{}) {
		printField("Approved", view.Approved.Hex())
	}
	printField("Own Flags", fmt.Sprintf("transferable=%s burnable=%s", flag(!view.NonTransferable), flag(!view.NonBurnable)))
	printField("Transferable", flag(transferable))
	printField("Burnable", flag(burnable))
	if view.LockedTo != nil {
		printField("Locked To", Yellow+view.LockedTo.String()+Reset)
	}
	printRefs("Dependencies", view.Dependencies)
	printRefs("Locked From", view.LockedFrom)
	if len(view.Whitelist) > 0 {
		header("WHITELIST")
		for _, addr := range view.Whitelist {
			fmt.Println("  " + addr.Hex())
		}
	}
}

func printRefs(title string, refs []tokenref.Ref) {
	if len(refs) == 0 {
		return
	}
	header(strings.ToUpper(title))
	for _, ref := range refs {
		fmt.Println("  " + ref.String())
	}
}

func printEvent(ev lockable.Event) {
	token := "?"
	if ev.Token != nil {
		token = tokenref.New(ev.Registry, ev.Token).String()
	}
	detail := ""
	switch {
	case ev.Ref != nil:
		detail = ev.Ref.String()
	case ev.From != nil && ev.To != nil:
		detail = ev.From.Hex() + " -> " + ev.To.Hex()
	case ev.To != nil:
		detail = "-> " + ev.To.Hex()
	case ev.From != nil:
		detail = ev.From.Hex() + " ->"
	case ev.Flags != nil:
		detail = fmt.Sprintf("nonTransferable=%t nonBurnable=%t", ev.Flags.NonTransferable, ev.Flags.NonBurnable)
	}
	fmt.Printf("%s#%-6d%s %s%-20s%s %s %s%s%s\n", Gray, ev.Tx, Reset, Cyan, ev.Kind, Reset, token, Gray, detail, Reset)
}

func printReceipt(tx uint64, err error) {
	if err != nil {
		printError(err)
		return
	}
	fmt.Printf("%sCommitted in tx #%d%s\n", Green, tx, Reset)
}

func printError(err error) {
	fmt.Printf(Red+"[ERROR] %s: %v%s\n", client.KindOf(err), err, Reset)
}

func exitConsole() {
	fmt.Println(Yellow + "Exiting..." + Reset)
	os.Exit(0)
}
