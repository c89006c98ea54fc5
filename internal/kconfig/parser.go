package kconfig

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/pkg/log"
)

const (
	// DefaultRoot is the top level Kconfig file of a kernel tree.
	DefaultRoot = "Kconfig"

	maxSourceDepth = 64
	maxMacroDepth  = 32
	tabWidth       = 8
)

var (
	varReg   = regexp.MustCompile(`\$\(([A-Za-z0-9_-]+)\)|\$([A-Za-z0-9_]+)`)
	macroReg = regexp.MustCompile(`^([A-Za-z0-9_-]+)[ \t]*(:=|\+=|=)(.*)$`)
	nameReg  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// LoadOptions configures Load.
type LoadOptions struct {
	// FS is the kernel source tree, every `source` statement is resolved in it.
	FS fs.FS
	// Env holds the values of `$(VAR)` references, e.g. SRCARCH. Macros assigned in the
	// Kconfig files are added to a copy of it while parsing.
	Env map[string]string
	// Root is the top level Kconfig file relative to FS, DefaultRoot when empty.
	Root string
}

// Load parses the Kconfig tree rooted at opts.Root into a Graph.
func Load(l log.Logger, opts LoadOptions) (*Graph, error) {
	root := opts.Root
	if root == "" {
		root = DefaultRoot
	}

	src, err := fs.ReadFile(opts.FS, root)
	if err != nil {
		return nil, errors.New(ParseError{Loc: SourceLoc{File: root}, Msg: err.Error()})
	}

	p := newParser(l, opts.FS, opts.Env)

	return p.run(root, src)
}

// Parse parses a single Kconfig file. `source` statements are rejected.
func Parse(l log.Logger, name string, src []byte) (*Graph, error) {
	p := newParser(l, nil, nil)

	return p.run(name, src)
}

type frameKind uint8

const (
	frameRoot frameKind = iota
	frameMenu
	frameChoice
	frameIf
)

var frameNames = map[frameKind]string{
	frameRoot:   "file",
	frameMenu:   "menu",
	frameChoice: "choice",
	frameIf:     "if",
}

// frame is one open block: menu, choice or if.
type frame struct {
	cond Expr
	// outer is the condition of the enclosing blocks.
	outer Expr
	loc   SourceLoc
	// menuconfigs are the menuconfig options declared in this block that may still adopt children.
	menuconfigs []int
	kind        frameKind
	menu        int
	choice      int
}

// definition is one `config` or `menuconfig` entry. A symbol may be defined several times.
type definition struct {
	opt     *Option
	ctx     Expr
	deps    Expr
	prompt  string
	loc     SourceLoc
	selects []pendingSelect
	kind    Kind
	menu    bool
}

type pendingSelect struct {
	cond   Expr
	target string
	loc    SourceLoc
}

type commentEntry struct{}

type parser struct {
	logger log.Logger
	fsys   fs.FS
	env    map[string]string
	// recursive marks the macros assigned with `=`, they are expanded at each use.
	recursive map[string]bool
	graph     *Graph
	entry     any
	defined   map[int]bool
	file      string
	stack     []*frame
	selects   []pendingSelect
	selector  []int
	depth     int
	// base is the stack depth when the current file started, its blocks sit above it.
	base int
}

func newParser(l log.Logger, fsys fs.FS, env map[string]string) *parser {
	vars := make(map[string]string, len(env))
	for key, val := range env {
		vars[key] = val
	}

	return &parser{
		logger:    l,
		fsys:      fsys,
		env:       vars,
		recursive: make(map[string]bool),
		graph:     newGraph(),
		defined:   make(map[int]bool),
		stack:     []*frame{{kind: frameRoot, menu: -1, choice: -1}},
	}
}

func (p *parser) run(name string, src []byte) (*Graph, error) {
	if err := p.parseFile(name, src); err != nil {
		return nil, err
	}

	for i, sel := range p.selects {
		target, ok := p.graph.byName[sel.target]
		if !ok {
			p.logger.Debugf("%s: select of undefined symbol %s ignored", sel.loc, sel.target)
			continue
		}

		opt := p.graph.Options[p.selector[i]]
		opt.Selects = append(opt.Selects, Select{Target: target, Cond: sel.cond})
	}

	p.graph.finish()

	p.logger.Debugf("Loaded %d options, %d menus, %d choices and %d edges from %s",
		len(p.graph.Options), len(p.graph.Menus), len(p.graph.Choices), len(p.graph.Edges), name)

	return p.graph, nil
}

type logicalLine struct {
	text   string
	line   int
	indent int
}

func splitLines(src []byte) []logicalLine {
	var (
		lines   []logicalLine
		pending *logicalLine
	)

	for i, raw := range strings.Split(string(src), "\n") {
		raw = strings.TrimRight(raw, "\r")

		if pending == nil {
			pending = &logicalLine{line: i + 1, indent: indentOf(raw)}
		}

		if strings.HasSuffix(raw, "\\") {
			pending.text += strings.TrimSuffix(raw, "\\") + " "
			continue
		}

		pending.text += raw
		lines = append(lines, *pending)
		pending = nil
	}

	if pending != nil {
		lines = append(lines, *pending)
	}

	return lines
}

func indentOf(line string) int {
	indent := 0

	for _, ch := range line {
		switch ch {
		case ' ':
			indent++
		case '\t':
			indent = (indent/tabWidth + 1) * tabWidth
		default:
			return indent
		}
	}

	return indent
}

func (p *parser) parseFile(name string, src []byte) error {
	prevFile, prevBase := p.file, p.base
	p.file, p.base = name, len(p.stack)

	defer func() { p.file, p.base = prevFile, prevBase }()

	startDepth := len(p.stack)

	var (
		inHelp     bool
		helpIndent int
	)

	for _, line := range splitLines(src) {
		loc := SourceLoc{File: name, Line: line.line}
		blank := strings.TrimSpace(line.text) == ""

		if inHelp {
			if blank {
				continue
			}

			if helpIndent < 0 && line.indent > 0 {
				helpIndent = line.indent
				continue
			}

			if helpIndent >= 0 && line.indent >= helpIndent {
				continue
			}

			inHelp = false
		}

		if blank {
			continue
		}

		if text := strings.TrimSpace(line.text); strings.HasPrefix(text, "$(") {
			p.logger.Tracef("%s: macro call skipped", loc)
			continue
		} else if match := macroReg.FindStringSubmatch(text); match != nil {
			p.assign(match[1], match[2], strings.TrimSpace(match[3]))
			continue
		}

		tokens, err := tokenize(line.text)
		if err != nil {
			return p.errorf(loc, "%v", err)
		}

		if len(tokens) == 0 {
			continue
		}

		if tokens[0].kind != tokWord {
			return p.errorf(loc, "unexpected %q at start of line", tokens[0].text)
		}

		if kw := tokens[0].text; kw == "help" || kw == "---help---" {
			inHelp, helpIndent = true, -1
			continue
		}

		if err := p.handle(tokens[0].text, tokens[1:], loc); err != nil {
			return err
		}
	}

	p.endEntry()

	if len(p.stack) != startDepth {
		open := p.stack[len(p.stack)-1]
		return p.errorf(SourceLoc{File: name}, "%s started at %s is not closed", frameNames[open.kind], open.loc)
	}

	return nil
}

// assign records a macro assignment. `:=` expands the value immediately, `=` at each use and
// `+=` appends with a space in the flavor the macro already has.
func (p *parser) assign(name, op, val string) {
	switch op {
	case ":=":
		p.env[name] = p.expand(val, 0)
		p.recursive[name] = false
	case "=":
		p.env[name] = val
		p.recursive[name] = true
	case "+=":
		if !p.recursive[name] {
			val = p.expand(val, 0)
		}

		if prev, ok := p.env[name]; ok && prev != "" {
			val = prev + " " + val
		}

		p.env[name] = val
	}
}

// expand substitutes the `$(NAME)` references to known macros and variables. Function calls
// such as $(shell,...) and unknown names are kept as written.
func (p *parser) expand(str string, depth int) string {
	if depth > maxMacroDepth || !strings.Contains(str, "$(") {
		return str
	}

	var sb strings.Builder

	for i := 0; i < len(str); {
		if !strings.HasPrefix(str[i:], "$(") {
			sb.WriteByte(str[i])
			i++

			continue
		}

		end := matchParen(str, i+1)
		if end < 0 {
			sb.WriteString(str[i:])
			break
		}

		name := str[i+2 : end]

		val, ok := p.env[name]
		if !ok || !nameReg.MatchString(name) {
			sb.WriteString(str[i : end+1])
		} else {
			if p.recursive[name] {
				val = p.expand(val, depth+1)
			}

			sb.WriteString(val)
		}

		i = end + 1
	}

	return sb.String()
}

func (p *parser) errorf(loc SourceLoc, format string, args ...any) error {
	return errors.New(ParseError{Loc: loc, Msg: fmt.Sprintf(format, args...)})
}

func (p *parser) handle(kw string, args []token, loc SourceLoc) error {
	switch kw {
	case "mainmenu":
		p.endEntry()

		title, err := p.stringArg(args, loc)
		if err != nil {
			return err
		}

		p.graph.MainMenu = title
	case "config", "menuconfig":
		p.endEntry()
		return p.startDefinition(kw == "menuconfig", args, loc)
	case "menu":
		p.endEntry()

		title, err := p.stringArg(args, loc)
		if err != nil {
			return err
		}

		menu := &Menu{ID: len(p.graph.Menus), Title: title, Loc: loc, Config: -1, Parent: p.currentMenu()}
		p.graph.Menus = append(p.graph.Menus, menu)
		p.entry = p.push(frameMenu, nil, loc, func(f *frame) { f.menu = menu.ID })
	case "choice":
		p.endEntry()

		choice := &Choice{ID: len(p.graph.Choices), Loc: loc}
		if len(args) > 0 {
			choice.Name = args[0].text
		}

		p.graph.Choices = append(p.graph.Choices, choice)
		f := p.push(frameChoice, nil, loc, func(f *frame) { f.choice = choice.ID })
		choice.Depends = f.outer
		p.entry = f
	case "if":
		p.endEntry()

		cond, err := p.exprArg(args, loc)
		if err != nil {
			return err
		}

		p.push(frameIf, cond, loc, nil)
	case "endmenu":
		return p.pop(frameMenu, loc)
	case "endchoice":
		return p.pop(frameChoice, loc)
	case "endif":
		return p.pop(frameIf, loc)
	case "comment":
		p.endEntry()
		p.entry = commentEntry{}
	case "source", "rsource", "osource", "orsource":
		p.endEntry()
		return p.source(kw, args, loc)
	default:
		return p.attribute(kw, args, loc)
	}

	return nil
}

func (p *parser) attribute(kw string, args []token, loc SourceLoc) error {
	if p.entry == nil {
		return p.errorf(loc, "%q outside of a config, menu or choice entry", kw)
	}

	switch kw {
	case "bool", "boolean", "tristate", "int", "hex", "string", "def_bool", "def_tristate":
		return p.setType(kw, args, loc)
	case "prompt":
		prompt, err := p.stringArg(args, loc)
		if err != nil {
			return err
		}

		p.setPrompt(prompt)
	case "depends":
		if len(args) == 0 || args[0].text != "on" {
			return p.errorf(loc, "expected \"depends on\"")
		}

		cond, err := p.exprArg(args[1:], loc)
		if err != nil {
			return err
		}

		p.addDepends(cond)
	case "select", "imply":
		def, ok := p.entry.(*definition)
		if !ok {
			return p.errorf(loc, "%q is only valid in a config entry", kw)
		}

		if len(args) == 0 || args[0].kind != tokWord {
			return p.errorf(loc, "%q needs a symbol", kw)
		}

		cond, err := p.ifClause(args[1:], loc)
		if err != nil {
			return err
		}

		// implied options may still be turned off, only selects constrain the graph.
		if kw == "select" {
			def.selects = append(def.selects, pendingSelect{target: args[0].text, cond: cond, loc: loc})
		}
	case "optional":
		if f, ok := p.entry.(*frame); ok && f.kind == frameChoice {
			p.graph.Choices[f.choice].Optional = true
		}
	case "default", "range", "option", "modules", "transitional", "defconfig_list",
		"allnoconfig_y", "env", "visible":
	default:
		return p.errorf(loc, "unknown keyword %q", kw)
	}

	return nil
}

func (p *parser) setType(kw string, args []token, loc SourceLoc) error {
	kind := map[string]Kind{
		"bool":         KindBool,
		"boolean":      KindBool,
		"def_bool":     KindBool,
		"tristate":     KindTristate,
		"def_tristate": KindTristate,
		"int":          KindInt,
		"hex":          KindHex,
		"string":       KindString,
	}[kw]

	if def, ok := p.entry.(*definition); ok {
		def.kind = kind
	}

	if strings.HasPrefix(kw, "def_") || len(args) == 0 || args[0].kind != tokString {
		return nil
	}

	if _, err := p.ifClause(args[1:], loc); err != nil {
		return err
	}

	p.setPrompt(args[0].text)

	return nil
}

func (p *parser) setPrompt(prompt string) {
	switch entry := p.entry.(type) {
	case *definition:
		entry.prompt = prompt
	case *frame:
		if entry.kind == frameChoice {
			p.graph.Choices[entry.choice].Prompt = prompt
		}
	}
}

func (p *parser) addDepends(cond Expr) {
	switch entry := p.entry.(type) {
	case *definition:
		entry.deps = And(entry.deps, cond)
	case *frame:
		entry.cond = And(entry.cond, cond)

		if entry.kind == frameChoice {
			p.graph.Choices[entry.choice].Depends = And(entry.outer, entry.cond)
		}
	}
}

func (p *parser) stringArg(args []token, loc SourceLoc) (string, error) {
	if len(args) == 0 || args[0].kind != tokString {
		return "", p.errorf(loc, "expected a quoted string")
	}

	return args[0].text, nil
}

func (p *parser) exprArg(args []token, loc SourceLoc) (Expr, error) {
	if len(args) == 0 {
		return nil, p.errorf(loc, "expected an expression")
	}

	e, err := parseExprTokens(args)
	if err != nil {
		return nil, p.errorf(loc, "%v", err)
	}

	return e, nil
}

// ifClause parses an optional trailing `if <expr>`.
func (p *parser) ifClause(args []token, loc SourceLoc) (Expr, error) {
	if len(args) == 0 {
		return nil, nil
	}

	if args[0].kind != tokWord || args[0].text != "if" {
		return nil, p.errorf(loc, "unexpected %q", args[0].text)
	}

	return p.exprArg(args[1:], loc)
}

func (p *parser) push(kind frameKind, cond Expr, loc SourceLoc, init func(f *frame)) *frame {
	top := p.stack[len(p.stack)-1]

	f := &frame{
		kind:   kind,
		cond:   cond,
		outer:  And(top.outer, top.cond),
		loc:    loc,
		menu:   top.menu,
		choice: top.choice,
	}

	if init != nil {
		init(f)
	}

	p.stack = append(p.stack, f)

	return f
}

func (p *parser) pop(kind frameKind, loc SourceLoc) error {
	p.endEntry()

	if len(p.stack) <= p.base {
		return p.errorf(loc, "end%s without matching %s in this file", frameNames[kind], frameNames[kind])
	}

	top := p.stack[len(p.stack)-1]
	if top.kind != kind {
		return p.errorf(loc, "end%s without matching %s", frameNames[kind], frameNames[kind])
	}

	p.stack = p.stack[:len(p.stack)-1]

	return nil
}

func (p *parser) currentMenu() int {
	return p.stack[len(p.stack)-1].menu
}

func (p *parser) startDefinition(menu bool, args []token, loc SourceLoc) error {
	if len(args) != 1 || args[0].kind != tokWord {
		return p.errorf(loc, "expected a single symbol name")
	}

	name := args[0].text

	id, ok := p.graph.byName[name]
	if !ok {
		id = p.graph.addOption(name, loc).ID
	}

	top := p.stack[len(p.stack)-1]

	p.entry = &definition{
		opt:  p.graph.Options[id],
		ctx:  And(top.outer, top.cond),
		loc:  loc,
		menu: menu,
	}

	return nil
}

func (p *parser) endEntry() {
	if def, ok := p.entry.(*definition); ok {
		p.finishDefinition(def)
	}

	p.entry = nil
}

func (p *parser) finishDefinition(def *definition) {
	opt := def.opt
	combined := And(def.ctx, def.deps)
	top := p.stack[len(p.stack)-1]

	for _, sel := range def.selects {
		p.selects = append(p.selects, sel)
		p.selector = append(p.selector, opt.ID)
	}

	if opt.Kind == KindUnknown {
		opt.Kind = def.kind
	}

	if opt.Prompt == "" {
		opt.Prompt = def.prompt
	}

	if p.defined[opt.ID] {
		opt.DependsOn = Or(opt.DependsOn, combined)
		return
	}

	p.defined[opt.ID] = true
	opt.DependsOn = combined
	opt.Loc = def.loc
	opt.Parent = p.findParent(combined)
	opt.Menu = top.menu

	if opt.Parent >= 0 {
		opt.Menu = p.menuOf(opt.Parent)
	}

	if opt.Menu >= 0 {
		p.graph.Menus[opt.Menu].Options = append(p.graph.Menus[opt.Menu].Options, opt.ID)
	}

	if top.choice >= 0 {
		opt.Choice = top.choice
		p.graph.Choices[top.choice].Members = append(p.graph.Choices[top.choice].Members, opt.ID)
	}

	if def.menu {
		title := opt.Prompt
		if title == "" {
			title = opt.Name
		}

		p.graph.Menus = append(p.graph.Menus, &Menu{
			ID:     len(p.graph.Menus),
			Title:  title,
			Loc:    def.loc,
			Config: opt.ID,
			Parent: opt.Menu,
		})

		top.menuconfigs = append(top.menuconfigs, opt.ID)
	}
}

// findParent returns the innermost open menuconfig the dependency requires, -1 if none.
// A definition in the same block that is not a child closes the block's menuconfigs.
func (p *parser) findParent(cond Expr) int {
	required := make(map[string]bool)

	for _, e := range Conjuncts(cond) {
		if sym, ok := e.(symbolExpr); ok {
			required[sym.name] = true
		}
	}

	for i := len(p.stack) - 1; i >= 0; i-- {
		f := p.stack[i]

		for j := len(f.menuconfigs) - 1; j >= 0; j-- {
			if id := f.menuconfigs[j]; required[p.graph.Options[id].Name] {
				return id
			}
		}

		if i == len(p.stack)-1 {
			f.menuconfigs = nil
		}
	}

	return -1
}

func (p *parser) menuOf(config int) int {
	for _, menu := range p.graph.Menus {
		if menu.Config == config {
			return menu.ID
		}
	}

	return -1
}

func (p *parser) source(kw string, args []token, loc SourceLoc) error {
	pattern, err := p.stringArg(args, loc)
	if err != nil {
		return err
	}

	if p.fsys == nil {
		return p.errorf(loc, "%s is not supported without a source tree", kw)
	}

	if p.depth >= maxSourceDepth {
		return p.errorf(loc, "source nesting deeper than %d", maxSourceDepth)
	}

	pattern = varReg.ReplaceAllStringFunc(p.expand(pattern, 0), func(match string) string {
		name := strings.Trim(match, "$()")
		return p.env[name]
	})

	if strings.HasPrefix(kw, "r") || strings.HasPrefix(kw, "or") {
		pattern = path.Join(path.Dir(p.file), pattern)
	}

	pattern = path.Clean(pattern)
	optional := strings.HasPrefix(kw, "o")

	files := []string{pattern}

	if strings.ContainsAny(pattern, "*?[") {
		if files, err = fs.Glob(p.fsys, pattern); err != nil {
			return p.errorf(loc, "%v", err)
		}

		slices.Sort(files)
	}

	for _, file := range files {
		src, err := fs.ReadFile(p.fsys, file)
		if err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return p.errorf(loc, "%v", err)
		}

		p.depth++
		err = p.parseFile(file, src)
		p.depth--

		if err != nil {
			return err
		}
	}

	return nil
}
