package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"
	"golang.org/x/term"

	"github.com/robotalks/mojo.go/pkg/cli/progress"
	"github.com/robotalks/mojo.go/pkg/config"
	fx "github.com/robotalks/mojo.go/pkg/framework"
	"github.com/robotalks/mojo.go/pkg/mojo"
	"github.com/robotalks/mojo.go/pkg/status/mqtt"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config *config.Config
	Loader *mojo.Loader
	// Status publishes status events if not nil.
	Status mqtt.Publisher
	Host   string
	// Progress is where progress bars are rendered, discarded unless
	// stderr is a terminal.
	Progress io.Writer

	ctx     context.Context
	lastErr error
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[no port] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&PortsCmd,
		&PortCmd,
		&VerifyCmd,
		&ShowCmd,
		&EraseCmd,
		&LoadCmd,
		&FlashCmd,
		&UploadCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell.
func New(ctx context.Context, conf *config.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:    ishell.New(),
		Config:   conf,
		Loader:   conf.NewLoader(),
		Progress: ioutil.Discard,
		ctx:      ctx,
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		s.Progress = os.Stderr
	}
	s.Loader.CloseFailed = func(op *mojo.Operation, err error) {
		glog.Warningf("%s[%s] close: %v", op.Name(), op.Port(), err)
	}
	s.Shell.Set(shellKey, s)
	s.updatePrompt()
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustHavePort wraps command func requires a selected port.
func MustHavePort(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		s := ShellFrom(c)
		if s.Config.Port == "" {
			s.fail(c, fmt.Errorf("no port selected, use: port NAME"))
			return
		}
		fn(c)
	}
}

// SelectPort selects the port for following operations.
func (s *Shell) SelectPort(port string) {
	s.Config.Port = port
	s.updatePrompt()
}

// RunOperation starts an operation with start and waits for its outcome,
// rendering progress.
func (s *Shell) RunOperation(start func(context.Context, *mojo.Loader) (*mojo.Operation, error)) error {
	bar := progress.New(s.Progress)
	progressSinks := mojo.ProgressSinks{bar}
	outcomeSinks := mojo.OutcomeSinks{bar}
	if s.Status != nil {
		reporter := mqtt.NewReporter(s.Status, s.Host, s.Config.Port)
		progressSinks = append(progressSinks, reporter)
		outcomeSinks = append(outcomeSinks, reporter)
	}
	s.Loader.Progress, s.Loader.Outcome = progressSinks, outcomeSinks
	op, err := start(s.ctx, s.Loader)
	if err != nil {
		return err
	}
	return op.Wait()
}

// Run runs the shell, or processes args as a single command.
func (s *Shell) Run(args ...string) error {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			return err
		}
		return s.lastErr
	}
	if s.Interactive {
		s.Shell.Run()
		return nil
	}
	return fmt.Errorf("command expected")
}

// Close stops the interactive shell and releases the loader.
func (s *Shell) Close() error {
	s.Shell.Close()
	return s.Loader.Close()
}

func (s *Shell) updatePrompt() {
	if s.Config.Port == "" {
		s.Shell.SetPrompt(unconnectedPrompt)
		return
	}
	s.Shell.SetPrompt(fmt.Sprintf("[%s] > ", s.Config.Port))
}

func (s *Shell) fail(c *ishell.Context, err error) {
	s.lastErr = err
	c.Err(err)
}

func (s *Shell) printJSON(c *ishell.Context, v interface{}) {
	out, err := json.Marshal(v)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Println(string(out))
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf := config.Default().MustLoad()

	runner := fx.NewRunner().HandleSignals()
	s := New(runner.Context, conf)

	if conf.StatusURL != "" {
		q, err := mqtt.NewQueueFromURL(conf.StatusURL)
		if err != nil {
			glog.Exitf("invalid status URL: %v", err)
		}
		s.Status, s.Host = q, mqtt.HostID()
		runner.Go(fx.NamedRun("status", q))
	}
	runner.Go(fx.NamedRun("shell", fx.RunFunc(func(ctx context.Context) error {
		defer runner.Stop()
		return fx.RunWithContextCloser(ctx, s, func() error {
			return s.Run(flag.Args()...)
		})
	})))
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}
