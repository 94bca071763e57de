package walhist

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	"github.com/vasylcode/walhist/internal/events"
	"github.com/vasylcode/walhist/internal/history"
	"github.com/vasylcode/walhist/internal/logging"
	"github.com/vasylcode/walhist/internal/model"
	"github.com/vasylcode/walhist/internal/storage"
	"github.com/vasylcode/walhist/internal/util"
	"go.uber.org/zap"
)

// Columns of a row line, in cells from the left edge of the list
const (
	colAddress   = 8
	widthAddress = 22
	colAmount    = colAddress + widthAddress + 1
	widthAmount  = 24
	colAction    = colAmount + widthAmount + 2
	colComment   = colAddress
)

const (
	colorIncoming = "#00FF00"
	colorOutgoing = "#FF5555"
	colorPending  = "#FFFF00"
	colorDate     = "#00FFFF"
	colorOwner    = "#00FFFF"
	colorDim      = "#666666"
	colorAction   = "#FF00FF"
)

const scrollStep = 3

func init() {
	dashboardCmd := &cobra.Command{
		Use:     "dashboard [ticker]",
		Aliases: []string{"d"},
		Short:   "Open the interactive history view",
		Long: `Open the interactive history view. Scroll to load older transactions,
click an address to copy it, click an encrypted comment to decrypt it and
click a transaction to see its details. Press : for commands.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runDashboard,
	}

	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) {
	logCfg := cfg.Log
	logCfg.File = logFile()
	log, err := logging.New(logCfg)
	if err != nil {
		er(fmt.Sprintf("Failed to initialize logger: %v", err))
		return
	}
	defer func() { _ = log.Sync() }()

	s := openStorage()
	ticker := cfg.Ticker
	if len(args) > 0 {
		ticker = args[0]
	}

	app := tview.NewApplication()
	v := newHistoryView(app, s, log)

	poster := events.PosterFunc(func(fn func()) { app.QueueUpdateDraw(fn) })
	e, err := newEngine(cfg, s, poster, v.share, log)
	if err != nil {
		er(fmt.Sprintf("Failed to start history: %v", err))
		return
	}
	defer e.close()

	v.attach(e)
	defer v.detach()
	v.selectSymbol(lookupSymbol(s, ticker))
	go e.feed.Publish()

	log.Info("dashboard started", zap.String("ticker", ticker), zap.String("data_dir", s.DataDir()))
	if err := app.SetRoot(v.pages, true).EnableMouse(true).Run(); err != nil {
		er(fmt.Sprintf("Error running dashboard: %v", err))
	}
}

// historyView renders the rows of the selected asset and feeds mouse and
// keyboard input back into the history controller
type historyView struct {
	app     *tview.Application
	store   *storage.Storage
	log     *zap.Logger
	engine  *engine
	palette *CommandPalette

	symbols  []model.Symbol
	symbol   model.Symbol
	lifetime events.Lifetime

	pages  *tview.Pages
	header *tview.TextView
	list   *tview.Box
	bottom *tview.Pages
	footer *tview.TextView
	input  *tview.InputField

	scroll     int
	listHeight int
}

func newHistoryView(app *tview.Application, s *storage.Storage, log *zap.Logger) *historyView {
	v := &historyView{
		app:     app,
		store:   s,
		log:     log.Named("dashboard"),
		symbols: s.Symbols(),
	}
	v.palette = NewCommandPalette(v)

	v.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	v.list = tview.NewBox()
	v.list.SetBorder(true).SetTitle(" History ")
	v.list.SetDrawFunc(v.draw)

	v.footer = tview.NewTextView().SetDynamicColors(true)
	v.setStatus("", true)

	v.input = tview.NewInputField().
		SetLabel(":").
		SetFieldBackgroundColor(tcell.ColorDefault)
	v.input.SetDoneFunc(v.paletteDone)
	v.input.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyUp:
			v.input.SetText(v.palette.GetHistory(-1))
			return nil
		case tcell.KeyDown:
			v.input.SetText(v.palette.GetHistory(1))
			return nil
		}
		return event
	})

	v.bottom = tview.NewPages().
		AddPage("footer", v.footer, true, true).
		AddPage("input", v.input, true, false)

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.header, 1, 0, false).
		AddItem(v.list, 0, 1, true).
		AddItem(v.bottom, 1, 0, false)

	v.pages = tview.NewPages().AddPage("main", main, true, true)

	app.SetInputCapture(v.handleKey)
	app.SetMouseCapture(v.handleMouse)
	return v
}

func (v *historyView) attach(e *engine) {
	v.engine = e
	h := e.history
	events.Attach(&v.lifetime, h.HeightValue(), func(int) {
		v.clampScroll()
		v.updateHeader()
	})
	events.Attach(&v.lifetime, h.ViewRequests(), v.showDetails)
	events.Attach(&v.lifetime, h.NewTokenWalletRequests(), func(root string) {
		v.unsupported("Add token wallet", root)
	})
	events.Attach(&v.lifetime, h.CollectTokenRequests(), func(event string) {
		v.unsupported("Collect tokens", event)
	})
	events.Attach(&v.lifetime, h.ExecuteSwapBackRequests(), func(event string) {
		v.unsupported("Swap back", event)
	})
}

func (v *historyView) detach() {
	v.lifetime.Destroy()
}

func (v *historyView) history() *history.History {
	return v.engine.history
}

func (v *historyView) selectSymbol(symbol model.Symbol) {
	v.symbol = symbol
	v.scroll = 0
	v.engine.selectSymbol(symbol)
	v.visible()
	v.updateHeader()
}

func (v *historyView) updateHeader() {
	h := v.history()
	state := ""
	if st, ok := h.Transactions(v.symbol); ok {
		switch {
		case st.Exhausted || st.PreviousID.IsZero():
			state = fmt.Sprintf("%d transactions", len(st.List))
		default:
			state = fmt.Sprintf("%d transactions, more below", len(st.List))
		}
	}
	if n := len(h.Pending(v.symbol)); n > 0 {
		state += fmt.Sprintf(", [%s]%d pending[-]", colorPending, n)
	}
	v.header.SetText(fmt.Sprintf("[::b][%s]%s[-:-:-]  [%s]%s[-]",
		colorDate, tview.Escape(symbolLabel(v.symbol)), colorDim, state))
}

func (v *historyView) setStatus(msg string, ok bool) {
	hint := fmt.Sprintf("[%s]q[-] quit  [%s]:[-] commands  [%s]tab[-] next asset  [%s]d[-] decrypt all",
		colorDate, colorDate, colorDate, colorDate)
	switch {
	case msg == "":
		v.footer.SetText(hint)
	case ok:
		v.footer.SetText(fmt.Sprintf("[%s]%s[-]", colorIncoming, tview.Escape(msg)))
	default:
		v.footer.SetText(fmt.Sprintf("[%s]%s[-]", colorOutgoing, tview.Escape(msg)))
	}
}

func (v *historyView) share(address string) {
	if err := clipboard.WriteAll(address); err != nil {
		v.log.Warn("failed to copy address", zap.String("address", address), zap.Error(err))
		v.setStatus(fmt.Sprintf("Could not copy %s: %v", address, err), false)
		return
	}
	v.setStatus(fmt.Sprintf("Copied %s", address), true)
}

func (v *historyView) unsupported(action, address string) {
	v.log.Info("token action requested", zap.String("action", action), zap.String("address", address))
	v.setStatus(fmt.Sprintf("%s needs a connected wallet (%s)", action, util.ShortAddress(address)), false)
}

// draw renders the visible part of the rows inside the list border
func (v *historyView) draw(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
	ix, iy, iw, ih := x+1, y+1, width-2, height-2
	if ih != v.listHeight {
		v.listHeight = ih
		v.clampScroll()
		v.visible()
	}

	rows := v.history().Rows()
	if rows.Len() == 0 {
		tview.Print(screen, fmt.Sprintf("[%s]No transactions[-]", colorDim), ix, iy, iw, tview.AlignCenter, tcell.ColorWhite)
		return ix, iy, iw, ih
	}

	pointer := v.history().Pointer(0)
	for line := 0; line < ih; line++ {
		row, ok := rows.RowAt(v.scroll + line)
		if !ok {
			break
		}
		text := v.lineText(row, v.scroll+line-row.Top, pointer)
		tview.Print(screen, text, ix, iy+line, iw, tview.AlignLeft, tcell.ColorWhite)
	}
	return ix, iy, iw, ih
}

// lineText renders line n of row
func (v *historyView) lineText(row *history.Row, n int, pointer *history.Pointer) string {
	mark := func(text string, element history.Element) string {
		hit := history.Hit{Key: row.Key, Element: element}
		switch {
		case pointer.State() == history.PointerPressed && pointer.Pressed() == hit:
			return "[::r]" + text + "[::-]"
		case pointer.Hovered() == hit:
			return "[::u]" + text + "[::-]"
		}
		return text
	}

	if row.Kind == history.RowDate {
		if n > 0 {
			return ""
		}
		return fmt.Sprintf("[::b][%s]%s[-:-:-]", colorDate, formatDay(row.Day))
	}

	bodyHeight := cfg.Layout.RowHeight
	if row.Kind == history.RowPending {
		bodyHeight = cfg.Layout.PendingHeight
	}
	if n >= bodyHeight {
		if n != bodyHeight || row.Comment.Empty() {
			return ""
		}
		color := colorDim
		if row.Comment.Error {
			color = colorOutgoing
		} else if row.Comment.Phase == history.DecryptLocked || row.Comment.Phase == history.DecryptAwaiting {
			color = colorAction
		}
		text := tview.Escape(firstLine(row.Comment.Text))
		return fmt.Sprintf("%s[%s]%s[-]", strings.Repeat(" ", colComment), color, mark(text, history.ElementComment))
	}
	if n > 0 {
		return ""
	}

	when := row.Time.Format("15:04")
	amountColor := colorIncoming
	if row.Value < 0 {
		amountColor = colorOutgoing
	}
	if row.Kind == history.RowPending {
		when = "wait"
		amountColor = colorPending
	}

	address := util.ShortAddress(row.DisplayAddress())
	if len(address) > widthAddress {
		address = address[:widthAddress]
	}
	addressColor := "white"
	if row.Owner != "" {
		addressColor = colorOwner
	}
	padding := strings.Repeat(" ", widthAddress-len(address))

	amount := util.FormatSigned(row.Value) + " " + v.symbol.Ticker
	if row.Service {
		amount, amountColor = "service", colorDim
	}

	line := fmt.Sprintf("[%s]%-*s[-][%s]%s[-]%s [%s]%*s[-]  ",
		colorDim, colAddress, when,
		addressColor, mark(tview.Escape(address), history.ElementAddress), padding,
		amountColor, widthAmount, tview.Escape(amount))

	if label := actionLabel(row.Action); label != "" {
		line += fmt.Sprintf("[%s]%s[-]", colorAction, mark("["+label+"]", history.ElementAction))
	} else if row.IsInit {
		line += fmt.Sprintf("[%s]init[-]", colorDim)
	}
	return line
}

// hitAt maps a screen position to the row part under it
func (v *historyView) hitAt(x, y int) history.Hit {
	lx, ly, lw, lh := v.list.GetInnerRect()
	if x < lx || x >= lx+lw || y < ly || y >= ly+lh {
		return history.Hit{}
	}
	row, ok := v.history().Rows().RowAt(v.scroll + y - ly)
	if !ok {
		return history.Hit{}
	}
	return rowHit(row, v.scroll+y-ly-row.Top, x-lx, v.bodyHeight(row))
}

func (v *historyView) bodyHeight(row *history.Row) int {
	if row.Kind == history.RowPending {
		return cfg.Layout.PendingHeight
	}
	return cfg.Layout.RowHeight
}

// rowHit resolves the element at column col of line n of row
func rowHit(row *history.Row, n, col, bodyHeight int) history.Hit {
	hit := history.Hit{Key: row.Key, Element: history.ElementRow}
	if row.Kind == history.RowDate {
		return hit
	}
	if n >= bodyHeight {
		width := len(firstLine(row.Comment.Text))
		if n == bodyHeight && col >= colComment && col < colComment+width {
			hit.Element = history.ElementComment
		}
		return hit
	}
	if n > 0 {
		return hit
	}
	address := len(util.ShortAddress(row.DisplayAddress()))
	if address > widthAddress {
		address = widthAddress
	}
	switch {
	case col >= colAddress && col < colAddress+address:
		hit.Element = history.ElementAddress
	case row.Action != history.ActionNone && col >= colAction && col < colAction+len(actionLabel(row.Action))+2:
		hit.Element = history.ElementAction
	}
	return hit
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return line
}

func (v *historyView) handleMouse(event *tcell.EventMouse, action tview.MouseAction) (*tcell.EventMouse, tview.MouseAction) {
	if v.engine == nil || v.overlayOpen() {
		return event, action
	}
	h := v.history()
	x, y := event.Position()
	hit := v.hitAt(x, y)

	switch action {
	case tview.MouseMove:
		h.Move(0, hit)
	case tview.MouseLeftDown:
		h.Move(0, hit)
		h.Press(0)
	case tview.MouseLeftUp:
		h.Release(0, hit)
	case tview.MouseScrollUp:
		if hit.Valid() || v.inList(x, y) {
			v.scrollBy(-scrollStep)
			return nil, action
		}
	case tview.MouseScrollDown:
		if hit.Valid() || v.inList(x, y) {
			v.scrollBy(scrollStep)
			return nil, action
		}
	}
	return event, action
}

func (v *historyView) inList(x, y int) bool {
	return v.list.InRect(x, y)
}

func (v *historyView) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if v.overlayOpen() {
		return event
	}

	switch event.Key() {
	case tcell.KeyEscape:
		v.history().CancelAll()
		v.setStatus("", true)
		return nil
	case tcell.KeyDown:
		v.scrollBy(1)
		return nil
	case tcell.KeyUp:
		v.scrollBy(-1)
		return nil
	case tcell.KeyPgDn:
		v.scrollBy(v.listHeight)
		return nil
	case tcell.KeyPgUp:
		v.scrollBy(-v.listHeight)
		return nil
	case tcell.KeyTab:
		v.nextSymbol()
		return nil
	}

	switch event.Rune() {
	case 'q':
		v.app.Stop()
		return nil
	case ':':
		v.openPalette()
		return nil
	case 'j':
		v.scrollBy(1)
		return nil
	case 'k':
		v.scrollBy(-1)
		return nil
	case 'g':
		v.Top()
		return nil
	case 'G':
		v.scrollBy(v.history().Height())
		return nil
	case 'd':
		v.reportDecrypt(v.DecryptAll())
		return nil
	}
	return event
}

func (v *historyView) scrollBy(delta int) {
	v.scroll += delta
	v.clampScroll()
	v.history().CancelAll()
	v.visible()
}

func (v *historyView) clampScroll() {
	bottom := v.history().Height() - v.listHeight
	if bottom < 0 {
		bottom = 0
	}
	if v.scroll > bottom {
		v.scroll = bottom
	}
	if v.scroll < 0 {
		v.scroll = 0
	}
}

// visible reports the visible range, which may request the next page
func (v *historyView) visible() {
	v.history().CheckPreload(v.scroll, v.scroll+v.listHeight)
}

func (v *historyView) nextSymbol() {
	if len(v.symbols) == 0 {
		return
	}
	next := v.symbols[0]
	for i, symbol := range v.symbols {
		if symbol == v.symbol && i+1 < len(v.symbols) {
			next = v.symbols[i+1]
			break
		}
	}
	v.selectSymbol(next)
}

func (v *historyView) overlayOpen() bool {
	name, _ := v.pages.GetFrontPage()
	return name != "main" || v.input.HasFocus()
}

func (v *historyView) openPalette() {
	v.history().CancelAll()
	v.input.SetText("")
	v.bottom.SwitchToPage("input")
	v.app.SetFocus(v.input)
}

func (v *historyView) closePalette() {
	v.bottom.SwitchToPage("footer")
	v.app.SetFocus(v.list)
}

func (v *historyView) paletteDone(key tcell.Key) {
	if key != tcell.KeyEnter {
		v.closePalette()
		return
	}
	result := v.palette.Execute(v.input.GetText())
	v.closePalette()

	switch {
	case result.Quit:
		v.app.Stop()
	case result.IsHelp:
		v.showModal("help", result.HelpText)
	default:
		v.setStatus(result.Message, result.Success)
	}
}

func (v *historyView) showModal(name, text string) {
	v.history().CancelAll()
	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"Close"}).
		SetDoneFunc(func(int, string) {
			v.pages.RemovePage(name)
			v.app.SetFocus(v.list)
		})
	v.pages.AddPage(name, modal, true, true)
	v.app.SetFocus(modal)
}

func (v *historyView) showDetails(tx model.Transaction) {
	owner, _ := v.history().Owner(tx.CounterpartyOf(v.symbol))
	text := transactionDetails(tx, v.symbol, v.history().DecryptPhase(tx.ID), owner, v.history().Transactions)
	v.showModal("details", text)
}

// transactionDetails describes a transaction for the details dialog
func transactionDetails(tx model.Transaction, symbol model.Symbol, phase history.DecryptPhase, owner string, lookup func(model.Symbol) (*history.TransactionsState, bool)) string {
	var b strings.Builder
	value := tx.Value()
	if op := tx.TokenOp(); symbol.IsToken() && op.Kind != model.TokenNone && op.Value != 0 {
		value = op.Value
		if !tx.IsIncoming() {
			value = -value
		}
	}
	fmt.Fprintf(&b, "%s %s\n\n", util.FormatSigned(value), symbol.Ticker)

	direction := "From"
	if !tx.IsIncoming() {
		direction = "To"
	}
	if address := tx.CounterpartyOf(symbol); address != "" {
		if owner != "" {
			fmt.Fprintf(&b, "%s: %s (%s)\n", direction, address, owner)
		} else {
			fmt.Fprintf(&b, "%s: %s\n", direction, address)
		}
	}
	fmt.Fprintf(&b, "Date: %s\n", time.Unix(tx.Time, 0).In(cfgLocation()).Format("Jan 2, 2006 15:04:05"))
	fmt.Fprintf(&b, "Fee: %s\n", util.FormatAmount(tx.Fee))
	if tx.StorageFee != 0 {
		fmt.Fprintf(&b, "Storage fee: %s\n", util.FormatAmount(tx.StorageFee))
	}
	if tx.OtherFee != 0 {
		fmt.Fprintf(&b, "Other fee: %s\n", util.FormatAmount(tx.OtherFee))
	}
	if lookup != nil {
		if st, ok := lookup(symbol); ok && st.InitTransactionID == tx.ID {
			b.WriteString("Wallet initialization\n")
		}
	}

	switch phase {
	case history.DecryptLocked, history.DecryptAwaiting:
		b.WriteString("\nComment is encrypted\n")
	case history.DecryptFailed:
		fmt.Fprintf(&b, "\n%s\n", history.DecryptFailedText)
	default:
		if comment := tx.Comment(); comment != "" {
			fmt.Fprintf(&b, "\n%s\n", comment)
		}
	}
	fmt.Fprintf(&b, "\n%s", tx.ID)
	return b.String()
}

func cfgLocation() *time.Location {
	if cfg == nil {
		return time.Local
	}
	loc, err := cfg.Location()
	if err != nil {
		return time.Local
	}
	return loc
}

func (v *historyView) reportDecrypt(n int) {
	if n == 0 {
		v.setStatus("No encrypted comments", true)
		return
	}
	v.setStatus(fmt.Sprintf("Decrypting %d comments", n), true)
}

// SelectTicker selects the asset with the given ticker
func (v *historyView) SelectTicker(ticker string) error {
	symbol, err := v.store.FindSymbol(ticker)
	if err != nil {
		return err
	}
	v.selectSymbol(symbol)
	return nil
}

// Assets returns the assets of the store
func (v *historyView) Assets() []model.Symbol {
	return v.symbols
}

// Top scrolls back to the newest row
func (v *historyView) Top() {
	v.scroll = 0
	v.history().CancelAll()
	v.visible()
}

// DecryptAll requests every encrypted comment of the history
func (v *historyView) DecryptAll() int {
	n := v.engine.decryptAll()
	v.log.Debug("decrypt all requested", zap.Int("transactions", n))
	return n
}

// AddOwner records an owner name and resolves it right away
func (v *historyView) AddOwner(address, name string) error {
	if err := v.store.AddOwner(address, name); err != nil {
		return err
	}
	v.engine.feed.ReloadOwners()
	v.engine.feed.Resolve(history.OwnerResolutionRequest{Symbol: v.symbol, Addresses: []string{address}})
	return nil
}

// Owners returns the owner directory
func (v *historyView) Owners() map[string]string {
	return v.store.Owners()
}

// Reload publishes a fresh snapshot of the store
func (v *historyView) Reload() {
	go v.engine.feed.Publish()
}
