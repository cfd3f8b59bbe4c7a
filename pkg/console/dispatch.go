package console

import (
	"fmt"
	"strings"
)

// Context is passed to a command handler.
type Context struct {
	// Args are the tokens of the line, Args[0] is the command name.
	Args []string

	*Printer
}

// Command is an entry in the command table.
type Command struct {
	Name string
	Help string
	Func func(c *Context)
}

// Dispatcher maps the first token of a line to a Command.
// The command table is fixed once the Dispatcher is created.
type Dispatcher struct {
	out  *Printer
	cmds []Command
}

// NewDispatcher creates a Dispatcher with the built-in commands "?", "help"
// and "echo" followed by cmds. It panics on an empty or duplicate name.
func NewDispatcher(out *Printer, cmds ...Command) *Dispatcher {
	d := &Dispatcher{out: out}
	table := append(d.builtins(), cmds...)
	names := make(map[string]bool, len(table))
	for _, cmd := range table {
		if cmd.Name == "" || cmd.Func == nil {
			panic(fmt.Sprintf("console: invalid command %q", cmd.Name))
		}
		if names[cmd.Name] {
			panic(fmt.Sprintf("console: duplicate command %q", cmd.Name))
		}
		names[cmd.Name] = true
	}
	d.cmds = table
	return d
}

// Lookup finds a command by exact name.
func (d *Dispatcher) Lookup(name string) (Command, bool) {
	for _, cmd := range d.cmds {
		if cmd.Name == name {
			return cmd, true
		}
	}
	return Command{}, false
}

// Dispatch runs the command named by args[0] followed by a line terminator,
// or reports the unknown command. It returns false for an unknown command
// or empty args.
func (d *Dispatcher) Dispatch(args []string) bool {
	if len(args) == 0 {
		return false
	}
	cmd, ok := d.Lookup(args[0])
	if !ok {
		d.out.Print("Unknown command: ")
		d.out.Print(args[0])
		d.out.Print(CRLF)
		return false
	}
	cmd.Func(&Context{Args: args, Printer: d.out})
	d.out.Print(CRLF)
	return true
}

// DispatchLine is a LineFunc dispatching tokens from the Editor.
func (d *Dispatcher) DispatchLine(argv [][]byte) {
	args := make([]string, len(argv))
	for i, arg := range argv {
		args[i] = string(arg)
	}
	d.Dispatch(args)
}

func (d *Dispatcher) builtins() []Command {
	return []Command{
		{Name: "?", Help: "Show available commands.", Func: d.help},
		{Name: "help", Help: "Show available commands.", Func: d.help},
		{Name: "echo", Help: "Echoes the provided arguments.", Func: echo},
	}
}

func (d *Dispatcher) help(c *Context) {
	c.Print("Available commands:" + CRLF)
	for _, cmd := range d.cmds {
		c.Printf("%s\t- %s"+CRLF, cmd.Name, cmd.Help)
	}
}

func echo(c *Context) {
	c.Print(strings.Join(c.Args[1:], " "))
	c.Print(CRLF)
}
