package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"furniture-store/internal/cart"
	"furniture-store/internal/catalog"
	"furniture-store/internal/checkout"
	"furniture-store/internal/client"
	"furniture-store/internal/connectivity"
	"furniture-store/internal/domain"
	"furniture-store/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// printer serialises output from the prompt and from store subscriptions.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

// app is the terminal storefront.
type app struct {
	out      *printer
	api      *client.Client
	session  *session.Store
	catalog  *catalog.Cache
	cart     *cart.Store
	checkout *checkout.Coordinator
	monitor  *connectivity.Monitor
	logger   *zap.Logger

	unsubscribe []func()
}

type command struct {
	usage string
	help  string
	run   func(a *app, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"login":        {"login <email> <password>", "sign in", (*app).cmdLogin},
		"signup":       {"signup <email> <password> [full name] [tax_id=CPF]", "create an account", (*app).cmdSignUp},
		"logout":       {"logout", "sign out", (*app).cmdLogout},
		"whoami":       {"whoami", "show the signed-in user and role", (*app).cmdWhoami},
		"refresh-role": {"refresh-role", "reload your role after it changed", (*app).cmdRefreshRole},
		"products":     {"products [category] [sort] [featured] [in-stock]", "list products", (*app).cmdProducts},
		"search":       {"search <text>", "search product names and descriptions", (*app).cmdSearch},
		"show":         {"show <id>", "show one product", (*app).cmdShow},
		"add":          {"add <id> [qty]", "add a product to the cart", (*app).cmdAdd},
		"qty":          {"qty <id> <n>", "set a cart quantity; 0 removes", (*app).cmdQty},
		"remove":       {"remove <id>", "remove a product from the cart", (*app).cmdRemove},
		"cart":         {"cart", "show the cart", (*app).cmdCart},
		"checkout":     {"checkout", "start checkout", (*app).cmdCheckout},
		"set":          {"set <field> <value>", "fill a checkout field", (*app).cmdSet},
		"next":         {"next", "go to the next checkout step", (*app).cmdNext},
		"back":         {"back", "go to the previous checkout step", (*app).cmdBack},
		"goto":         {"goto <personal_info|address|payment>", "return to a visited checkout step", (*app).cmdGoTo},
		"pay":          {"pay", "pay and place the order", (*app).cmdPay},
		"orders":       {"orders", "list your orders", (*app).cmdOrders},
		"admin-create": {"admin-create name=.. price=.. category=.. stock=.. [description=..] [rating=..] [featured=true] [image=file.jpg]", "add a product", (*app).cmdAdminCreate},
		"admin-update": {"admin-update <id> key=value...", "edit a product", (*app).cmdAdminUpdate},
		"admin-delete": {"admin-delete <id>", "delete a product", (*app).cmdAdminDelete},
		"status":       {"status", "show the backend connection", (*app).cmdStatus},
		"help":         {"help", "list commands", (*app).cmdHelp},
	}
}

// start restores the session, loads the catalog and begins watching the
// backend. Failures are reported and the prompt still starts.
func (a *app) start(ctx context.Context, probeInterval time.Duration) {
	a.subscribe()

	if err := a.monitor.Check(ctx); err != nil {
		a.logger.Warn("Initial connectivity check failed", zap.Error(err))
	}
	if probeInterval > 0 {
		go a.monitor.Run(ctx, probeInterval)
	}

	if err := a.session.Start(ctx); err != nil {
		a.out.printf("! %s\n", domain.UserMessage(err))
	}
	if err := a.catalog.Load(ctx); err != nil {
		a.out.printf("! %s\n", domain.UserMessage(err))
		return
	}
	if featured := a.catalog.Featured(); len(featured) > 0 {
		a.out.printf("Featured:\n")
		a.printProducts(featured)
	}
}

func (a *app) subscribe() {
	lastStatus := session.StatusLoading
	a.unsubscribe = append(a.unsubscribe,
		a.session.Subscribe(func(s session.State) {
			if s.Status == lastStatus {
				return
			}
			lastStatus = s.Status
			switch s.Status {
			case session.StatusSignedIn:
				a.out.printf("* signed in as %s (%s)\n", s.Identity.Email, s.Role)
			case session.StatusSignedOut:
				a.out.printf("* signed out\n")
			}
		}),
		a.monitor.Subscribe(func(s connectivity.Status) {
			if banner := s.Banner(); banner != "" {
				a.out.printf("! %s\n", banner)
			} else if s.State == connectivity.StateConnected {
				a.out.printf("* connected to %s\n", a.api.BaseURL())
			}
		}),
		a.cart.Subscribe(func(s cart.Snapshot) {
			a.out.printf("* cart: %d item(s), %s\n", s.TotalItems, domain.FormatPrice(s.TotalPrice))
		}),
	)

	lastStep := checkout.StepPersonalInfo
	a.unsubscribe = append(a.unsubscribe, a.checkout.Subscribe(func(s checkout.State) {
		if s.Step == lastStep {
			return
		}
		lastStep = s.Step
		a.out.printf("* checkout step: %s %s\n", s.Step, strings.Join(checkout.Fields(s.Step), ", "))
	}))
}

func (a *app) close() {
	for _, fn := range a.unsubscribe {
		fn()
	}
	a.session.Close()
}

// repl reads commands from in until quit, EOF or ctx is done.
func (a *app) repl(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	a.out.printf("Type 'help' for commands.\n")
	for {
		a.out.printf("> ")
		var line string
		select {
		case <-ctx.Done():
			a.out.printf("\n")
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = l
		}

		if !a.exec(ctx, line) {
			return
		}
	}
}

// exec runs one command line. It returns false when the user quits.
func (a *app) exec(ctx context.Context, line string) bool {
	args := splitArgs(line)
	if len(args) == 0 {
		return true
	}
	name := strings.ToLower(args[0])
	if name == "quit" || name == "exit" {
		return false
	}

	cmd, ok := commands[name]
	if !ok {
		a.out.printf("unknown command %q, type 'help'\n", name)
		return true
	}
	if err := cmd.run(a, ctx, args[1:]); err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			a.out.printf("usage: %s\n", cmd.usage)
			return true
		}
		a.logger.Debug("Command failed", zap.String("command", name), zap.Error(err))
		a.out.printf("! %s\n", domain.UserMessage(err))
	}
	return true
}

type usageError struct{}

func (usageError) Error() string { return "bad usage" }

// splitArgs splits line on whitespace, keeping double-quoted runs together.
func splitArgs(line string) []string {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		hasArg  bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			hasArg = true
		case unicode.IsSpace(r) && !quoted:
			if hasArg {
				args = append(args, current.String())
				current.Reset()
				hasArg = false
			}
		default:
			current.WriteRune(r)
			hasArg = true
		}
	}
	if hasArg {
		args = append(args, current.String())
	}
	return args
}

// resolveProduct finds a loaded product by id or unique id prefix.
func (a *app) resolveProduct(ref string) (domain.Product, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return a.catalog.Get(id)
	}
	var match *domain.Product
	for _, p := range a.catalog.List() {
		if strings.HasPrefix(p.ID.String(), strings.ToLower(ref)) {
			if match != nil {
				return domain.Product{}, domain.NewValidationError("id", "ambiguous product id "+ref)
			}
			p := p
			match = &p
		}
	}
	if match == nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", ref, domain.ErrNotFound)
	}
	return *match, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError{}
	}
	_, err := a.session.SignIn(ctx, args[0], args[1])
	return err
}

func (a *app) cmdSignUp(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError{}
	}
	var (
		meta domain.SignUpMetadata
		name []string
	)
	for _, arg := range args[2:] {
		if taxID, ok := strings.CutPrefix(arg, "tax_id="); ok {
			meta.TaxID = taxID
			continue
		}
		name = append(name, arg)
	}
	meta.FullName = strings.Join(name, " ")

	result, err := a.session.SignUp(ctx, args[0], args[1], meta)
	if err != nil {
		return err
	}
	if result.Identity == nil {
		a.out.printf("account created, please sign in\n")
	}
	return nil
}

func (a *app) cmdLogout(ctx context.Context, _ []string) error {
	a.checkout.Reset()
	return a.session.SignOut(ctx)
}

func (a *app) cmdWhoami(_ context.Context, _ []string) error {
	s := a.session.State()
	if s.Status != session.StatusSignedIn {
		a.out.printf("%s\n", s.Status)
		return nil
	}
	name := ""
	if s.Profile != nil && s.Profile.FullName != "" {
		name = " " + s.Profile.FullName
	}
	a.out.printf("%s%s (%s)\n", s.Identity.Email, name, s.Role)
	return nil
}

func (a *app) cmdRefreshRole(ctx context.Context, _ []string) error {
	if err := a.session.RefreshRole(ctx); err != nil {
		return err
	}
	a.out.printf("role: %s\n", a.session.State().Role)
	return nil
}

func (a *app) cmdProducts(ctx context.Context, args []string) error {
	if !a.catalog.Loaded() {
		if err := a.catalog.Load(ctx); err != nil {
			return err
		}
	}
	if len(args) == 1 && args[0] == "featured" {
		a.printProducts(a.catalog.Featured())
		return nil
	}

	var q domain.ProductQuery
	for _, arg := range args {
		switch {
		case domain.Category(arg).Valid():
			q.Category = domain.Category(arg)
		case arg == "featured":
			q.FeaturedOnly = true
		case arg == "in-stock":
			q.InStockOnly = true
		case domain.SortOrder(arg).Valid():
			q.Sort = domain.SortOrder(arg)
		default:
			return domain.NewValidationError("category", fmt.Sprintf("unknown category or sort %q", arg))
		}
	}
	a.printProducts(a.catalog.Filter(q))
	return nil
}

func (a *app) cmdSearch(_ context.Context, args []string) error {
	if len(args) == 0 {
		return usageError{}
	}
	a.printProducts(a.catalog.Filter(domain.ProductQuery{Search: strings.Join(args, " ")}))
	return nil
}

func (a *app) printProducts(products []domain.Product) {
	if len(products) == 0 {
		a.out.printf("no products\n")
		return
	}
	for _, p := range products {
		stock := "out of stock"
		if p.InStock() {
			stock = strconv.Itoa(p.StockQuantity) + " in stock"
		}
		a.out.printf("%s  %-32s %12s  %-10s %s\n", shortID(p.ID), p.Name, domain.FormatPrice(p.Price), p.Category, stock)
	}
}

func (a *app) cmdShow(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usageError{}
	}
	p, err := a.resolveProduct(args[0])
	if err != nil {
		return err
	}
	a.out.printf("%s\n%s\n%s | %s | %d in stock\n", p.Name, p.Description, domain.FormatPrice(p.Price), p.Category, p.StockQuantity)
	if p.Rating.Valid {
		a.out.printf("rating %s\n", p.Rating.Decimal.StringFixed(1))
	}
	a.out.printf("image %s\nid %s\n", p.Image(), p.ID)
	return nil
}

func (a *app) cmdAdd(_ context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageError{}
	}
	qty := 1
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return domain.NewValidationError("quantity", "quantity must be a whole number")
		}
		qty = n
	}
	p, err := a.resolveProduct(args[0])
	if err != nil {
		return err
	}
	return a.cart.Add(p, qty)
}

func (a *app) cmdQty(_ context.Context, args []string) error {
	if len(args) != 2 {
		return usageError{}
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return domain.NewValidationError("quantity", "quantity must be a whole number")
	}
	p, err := a.resolveProduct(args[0])
	if err != nil {
		return err
	}
	return a.cart.SetQuantity(p.ID, n)
}

func (a *app) cmdRemove(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usageError{}
	}
	p, err := a.resolveProduct(args[0])
	if err != nil {
		return err
	}
	a.cart.Remove(p.ID)
	return nil
}

func (a *app) cmdCart(_ context.Context, _ []string) error {
	snap := a.cart.Snapshot()
	if len(snap.Items) == 0 {
		a.out.printf("your cart is empty\n")
		return nil
	}
	for _, line := range snap.Items {
		a.out.printf("%s  %-32s %3d x %12s = %12s\n", shortID(line.Product.ID), line.Product.Name,
			line.Quantity, domain.FormatPrice(line.Product.Price), domain.FormatPrice(line.Subtotal()))
	}
	a.out.printf("total: %d item(s), %s\n", snap.TotalItems, domain.FormatPrice(snap.TotalPrice))
	return nil
}

func (a *app) cmdCheckout(_ context.Context, _ []string) error {
	if err := a.checkout.Begin(); err != nil {
		if errors.Is(err, domain.ErrEmptyCart) {
			a.out.printf("your cart is empty, add products first\n")
			return nil
		}
		return err
	}
	a.printCheckout()
	return nil
}

func (a *app) printCheckout() {
	s := a.checkout.State()
	var progress []string
	for step := checkout.StepPersonalInfo; step < checkout.StepCompleted; step++ {
		switch {
		case step == s.Step:
			progress = append(progress, "["+step.String()+"]")
		case a.checkout.Visited(step):
			progress = append(progress, step.String())
		default:
			progress = append(progress, "("+step.String()+")")
		}
	}
	a.out.printf("step: %s  %s\n", s.Step, strings.Join(progress, " > "))
	for _, field := range checkout.Fields(s.Step) {
		value := s.Values[field]
		if field == checkout.FieldCardNumber && len(value) > 4 {
			value = strings.Repeat("*", len(value)-4) + value[len(value)-4:]
		}
		if field == checkout.FieldCVV && value != "" {
			value = "***"
		}
		a.out.printf("  %-14s %s\n", field, value)
	}
}

func (a *app) cmdSet(_ context.Context, args []string) error {
	if len(args) < 2 {
		return usageError{}
	}
	return a.checkout.Set(args[0], strings.Join(args[1:], " "))
}

func (a *app) cmdNext(_ context.Context, _ []string) error {
	if err := a.checkout.Next(); err != nil {
		return err
	}
	a.printCheckout()
	return nil
}

func (a *app) cmdBack(_ context.Context, _ []string) error {
	a.checkout.Back()
	a.printCheckout()
	return nil
}

func (a *app) cmdGoTo(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usageError{}
	}
	step, ok := checkout.ParseStep(args[0])
	if !ok {
		return usageError{}
	}
	if err := a.checkout.GoTo(step); err != nil {
		return err
	}
	a.printCheckout()
	return nil
}

func (a *app) cmdPay(ctx context.Context, _ []string) error {
	a.out.printf("processing payment...\n")
	receipt, err := a.checkout.Submit(ctx)
	if err != nil {
		return err
	}
	a.out.printf("order %s placed, total %s, payment %s\n",
		receipt.Order.ID, domain.FormatPrice(receipt.Order.TotalAmount), receipt.Confirmation.ID)
	return nil
}

func (a *app) cmdOrders(ctx context.Context, _ []string) error {
	if a.session.Identity() == nil {
		return domain.ErrNotSignedIn
	}
	orders, err := a.api.ListOrders(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		a.out.printf("no orders yet\n")
		return nil
	}
	for _, o := range orders {
		a.out.printf("%s  %s  %-9s %12s  %d line(s)\n", shortID(o.ID), o.CreatedAt.Local().Format("2006-01-02 15:04"),
			o.Status, domain.FormatPrice(o.TotalAmount), len(o.Items))
	}
	return nil
}

// parseProductArgs reads key=value pairs onto in. The image key names a
// local file that is uploaded first.
func (a *app) parseProductArgs(ctx context.Context, in *domain.ProductInput, args []string) error {
	var imageFile string
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return usageError{}
		}
		switch strings.ToLower(key) {
		case "name":
			in.Name = value
		case "description":
			in.Description = value
		case "price":
			in.Price = value
		case "category":
			in.Category = value
		case "stock":
			in.StockQuantity = value
		case "rating":
			in.Rating = value
		case "featured":
			in.Featured = value == "true" || value == "yes" || value == "1"
		case "image_url":
			in.ImageURL = value
		case "image":
			imageFile = value
		default:
			return domain.NewValidationError(key, "unknown product field")
		}
	}

	if imageFile != "" {
		f, err := os.Open(imageFile)
		if err != nil {
			return domain.NewValidationError("image", err.Error())
		}
		defer f.Close()
		url, err := a.catalog.UploadImage(ctx, in.Name, f)
		if err != nil {
			return err
		}
		in.ImageURL = url
	}
	return nil
}

func (a *app) cmdAdminCreate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError{}
	}
	var in domain.ProductInput
	if err := a.parseProductArgs(ctx, &in, args); err != nil {
		return err
	}
	p, err := a.catalog.Create(ctx, in)
	if err != nil {
		return err
	}
	a.out.printf("created %s %s\n", shortID(p.ID), p.Name)
	return nil
}

func (a *app) cmdAdminUpdate(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError{}
	}
	current, err := a.resolveProduct(args[0])
	if err != nil {
		return err
	}
	in := domain.ProductInput{
		Name:          current.Name,
		Description:   current.Description,
		Price:         current.Price.String(),
		Category:      string(current.Category),
		ImageURL:      current.ImageURL,
		StockQuantity: strconv.Itoa(current.StockQuantity),
		Featured:      current.Featured,
	}
	if current.Rating.Valid {
		in.Rating = current.Rating.Decimal.String()
	}
	if err := a.parseProductArgs(ctx, &in, args[1:]); err != nil {
		return err
	}
	p, err := a.catalog.Update(ctx, current.ID, in)
	if err != nil {
		return err
	}
	a.out.printf("updated %s %s\n", shortID(p.ID), p.Name)
	return nil
}

func (a *app) cmdAdminDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError{}
	}
	p, err := a.resolveProduct(args[0])
	if err != nil {
		return err
	}
	deleted, err := a.catalog.Delete(ctx, p.ID)
	if err != nil {
		return err
	}
	if !deleted {
		a.out.printf("product was already removed\n")
		return nil
	}
	a.out.printf("deleted %s\n", p.Name)
	return nil
}

func (a *app) cmdStatus(ctx context.Context, _ []string) error {
	if err := a.monitor.Check(ctx); err != nil {
		return err
	}
	s := a.monitor.Status()
	a.out.printf("%s to %s (checked %s)\n", s.State, a.api.BaseURL(), s.CheckedAt.Local().Format(time.TimeOnly))
	return nil
}

func (a *app) cmdHelp(_ context.Context, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands[name]
		a.out.printf("  %-40s %s\n", c.usage, c.help)
	}
	a.out.printf("  %-40s %s\n", "quit", "leave the store")
	a.out.printf("categories: ")
	for i, c := range domain.Categories {
		if i > 0 {
			a.out.printf(", ")
		}
		a.out.printf("%s", c)
	}
	a.out.printf("\n")
	return nil
}
