package sh

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/rig.go/pkg/link/mqtt"
	"github.com/robotalks/rig.go/pkg/msgs"
)

// Shell provides ishell backed interactive shell to a rig console.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell   *ishell.Shell
	Config  *Config
	Session *Session

	queue *mqtt.Queue
	rigID string
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "

	defaultStatusWatch = 3 * time.Second
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
		&StatusCmd,
		&SendCmd,
		&HelpCmd,
		&QuestionCmd,
		&EchoCmd,
		&TestSchedulerCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	// "help" and arguments named "help" belong to the rig.
	s.Shell.DeleteCmd("help")
	s.Shell.AutoHelp(false)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	s.Shell.NotFound(MustBeConnected(forward))
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Session == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// FormatInfo prints RigInfo into friendly string for display.
func FormatInfo(info mqtt.RigInfo) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "%s", info.ID)
	if info.Meta.Description != "" {
		fmt.Fprintf(&w, ": %s", info.Meta.Description)
	}
	if info.Meta.Transport != "" {
		fmt.Fprintf(&w, " (%s)", info.Meta.Transport)
	}
	return w.String()
}

// FormatStatus prints a status event for display.
func FormatStatus(rigID string, msg msgs.Message) string {
	switch m := msg.(type) {
	case *msgs.SchedulerStatus:
		state := "stopped"
		if m.Running {
			state = "running"
		}
		return fmt.Sprintf("%s scheduler %s %s (psc=%d arr=%d, %.0fHz)",
			rigID, state, m.Mode, m.Prescaler, m.Reload, m.FrequencyHz)
	case *msgs.Heartbeat:
		return fmt.Sprintf("%s heartbeat uptime=%s led=%v",
			rigID, time.Duration(m.Uptime)*time.Millisecond, m.LedOn)
	}
	return fmt.Sprintf("%s %T %s", rigID, msg, msg.String())
}

// Exec sends a console line to the rig and prints the reply.
func (s *Shell) Exec(c *ishell.Context, line string) error {
	if s.Session == nil {
		return fmt.Errorf("not connected")
	}
	out, err := s.Session.Exchange(line, s.Config.Settle, s.Config.MaxWait)
	if s.OutputJSON {
		data, e := json.Marshal(map[string]string{"command": line, "output": out})
		if e != nil {
			return e
		}
		c.Println(string(data))
	} else if out != "" {
		c.Println(out)
	}
	if err != nil {
		s.Disconnect()
	}
	return err
}

// Queue returns the connected MQTT queue for discovery and telemetry.
func (s *Shell) Queue() (*mqtt.Queue, error) {
	if s.queue != nil {
		return s.queue, nil
	}
	brokerURL := s.Config.BrokerURL()
	if brokerURL == "" {
		return nil, fmt.Errorf("no MQTT broker, use -mqtt")
	}
	q, err := mqtt.NewQueueFromURL(brokerURL, "rigcli-")
	if err != nil {
		return nil, err
	}
	if err := q.ConnectAndWait(); err != nil {
		return nil, err
	}
	s.queue = q
	return q, nil
}

// DiscoverRigs lists the rigs registered on the broker.
func (s *Shell) DiscoverRigs() ([]mqtt.RigInfo, error) {
	q, err := s.Queue()
	if err != nil {
		return nil, err
	}
	return mqtt.Discover(context.TODO(), q, mqtt.DefaultDiscoverTimeout)
}

// SelectRig discovers rigs and asks for a choice.
func (s *Shell) SelectRig() (*mqtt.RigInfo, error) {
	infoList, err := s.DiscoverRigs()
	if err != nil {
		return nil, err
	}
	if len(infoList) == 0 {
		return nil, nil
	}
	var index int
	if len(infoList) > 1 {
		if !s.Interactive {
			return nil, fmt.Errorf("more than 1 rigs discovered in non-interactive mode")
		}
		items := make([]string, len(infoList))
		for n, info := range infoList {
			items[n] = FormatInfo(info)
		}
		index = s.Shell.MultiChoice(items, "Which one to connect?")
	}
	return &infoList[index], nil
}

// Connect connects the rig console at rawURL.
func (s *Shell) Connect(rawURL, rigID string) error {
	if schemeOf(rawURL) == "mqtt" && rigID == "" {
		info, err := s.SelectRig()
		if err != nil {
			return err
		}
		if info == nil {
			return fmt.Errorf("no rig discovered")
		}
		rigID = info.ID
	}
	session, err := Dial(rawURL, rigID)
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Session = session
	s.rigID = rigID
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", session.Name))
	// the rig may greet with a banner.
	if banner, _ := session.Collect(s.Config.Settle, s.Config.Settle); len(banner) > 0 && s.Interactive {
		s.Shell.Println(cleanOutput("", banner))
	}
	return nil
}

// Disconnect disconnects current rig.
func (s *Shell) Disconnect() {
	if s.Session != nil {
		s.Session.Close()
		s.Session = nil
		s.rigID = ""
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Close releases all connections.
func (s *Shell) Close() {
	s.Disconnect()
	if s.queue != nil {
		s.queue.Close()
		s.queue = nil
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Close()
	if s.AutoConnect && s.Config.URL != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.URL)
		}
		if err := s.Connect(s.Config.URL, s.Config.RigID); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.URL, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func forward(c *ishell.Context) {
	if err := ShellFrom(c).Exec(c, strings.Join(c.Args, " ")); err != nil {
		c.Err(err)
	}
}

func forwardCmd(name string) func(c *ishell.Context) {
	return MustBeConnected(func(c *ishell.Context) {
		line := strings.Join(append([]string{name}, c.Args...), " ")
		if err := ShellFrom(c).Exec(c, line); err != nil {
			c.Err(err)
		}
	})
}

var (
	// DiscoverCmd discovers rigs registered on the MQTT broker.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "list rigs on the MQTT broker",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			infoList, err := s.DiscoverRigs()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(infoList) == 0 {
					// in case infoList is nil, make it empty slice.
					infoList = []mqtt.RigInfo{}
				}
				out, err := json.Marshal(infoList)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(infoList) == 0 {
				c.Println("No rigs found")
				return
			}
			for _, info := range infoList {
				c.Println(FormatInfo(info))
			}
		},
	}

	// ConnectCmd connects a rig console.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[URL [RIG-ID]]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			rawURL, rigID := s.Config.URL, s.Config.RigID
			if len(c.Args) > 0 {
				rawURL, rigID = c.Args[0], ""
			}
			if len(c.Args) > 1 {
				rigID = c.Args[1]
			}
			if err := s.Connect(rawURL, rigID); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current rig.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// StatusCmd prints status events published by rigs.
	StatusCmd = ishell.Cmd{
		Name: "status",
		Help: "[SECONDS [RIG-ID]] watch rig status events",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			watch := defaultStatusWatch
			if len(c.Args) > 0 {
				secs, err := strconv.ParseFloat(c.Args[0], 64)
				if err != nil {
					c.Err(fmt.Errorf("invalid duration %q", c.Args[0]))
					return
				}
				watch = time.Duration(secs * float64(time.Second))
			}
			rigID := "+"
			if len(c.Args) > 1 {
				rigID = c.Args[1]
			} else if s.rigID != "" {
				rigID = s.rigID
			}
			q, err := s.Queue()
			if err != nil {
				c.Err(err)
				return
			}
			sub := mqtt.WatchStatus(q, rigID, func(id string, msg msgs.Message) {
				if s.OutputJSON {
					out, err := json.Marshal(map[string]interface{}{"rig": id, "event": msg})
					if err == nil {
						c.Println(string(out))
					}
					return
				}
				c.Println(FormatStatus(id, msg))
			})
			time.Sleep(watch)
			sub.Close()
		},
	}

	// SendCmd sends a raw console line.
	SendCmd = ishell.Cmd{
		Name: "send",
		Help: "LINE send a raw line to the rig console",
		Func: MustBeConnected(func(c *ishell.Context) {
			if err := ShellFrom(c).Exec(c, strings.Join(c.Args, " ")); err != nil {
				c.Err(err)
			}
		}),
	}

	// HelpCmd lists the rig commands, or the shell commands when not connected.
	HelpCmd = ishell.Cmd{
		Name: "help",
		Help: "display help",
		Func: func(c *ishell.Context) {
			if ShellFrom(c).Session == nil {
				c.Println(c.HelpText())
				return
			}
			forwardCmd("help")(c)
		},
	}

	// QuestionCmd is the rig's alias of help.
	QuestionCmd = ishell.Cmd{
		Name: "?",
		Help: "rig: show available commands",
		Func: forwardCmd("?"),
	}

	// EchoCmd runs echo on the rig.
	EchoCmd = ishell.Cmd{
		Name: "echo",
		Help: "rig: echoes the provided arguments",
		Func: forwardCmd("echo"),
	}

	// TestSchedulerCmd controls the rig test scheduler.
	TestSchedulerCmd = ishell.Cmd{
		Name: "test_scheduler",
		Help: "rig: start | stop | frequency <100|1k|10k>",
		Func: forwardCmd("test_scheduler"),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}
