package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/listenupapp/readalong/internal/client"
	"github.com/listenupapp/readalong/internal/domain"
	"github.com/listenupapp/readalong/internal/errors"
	"github.com/listenupapp/readalong/internal/events"
	"github.com/listenupapp/readalong/internal/player"
	"github.com/listenupapp/readalong/internal/session"
)

const searchLimit = 10

// errQuit ends the loop.
var errQuit = errors.New("quit")

type command struct {
	usage string
	run   func(ctx context.Context, r *repl, args []string) error
}

// repl reads one command per line and drives a session.
type repl struct {
	sess   *session.Session
	api    *client.Client
	out    io.Writer
	source string
	hits   []domain.SearchHit
}

func newREPL(sess *session.Session, api *client.Client, out io.Writer, source string) *repl {
	return &repl{sess: sess, api: api, out: out, source: source}
}

// watch prints chunk changes and status messages as they are published.
func (r *repl) watch() {
	d := r.sess.Dispatcher()
	d.Subscribe(events.Chunk, func(e events.Event) error {
		if c, ok := e.Payload.(domain.Chunk); ok {
			fmt.Fprintf(r.out, "chunk %d (page %d): %s\n", c.ChunkID, c.Page, c.TextSnippet)
		}
		return nil
	})
	d.Subscribe(events.Status, func(e events.Event) error {
		if st, ok := e.Payload.(player.Status); ok && st.Visible() {
			fmt.Fprintf(r.out, "! %s\n", st.Message)
		}
		return nil
	})
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(r.out, `readalong ready, "help" lists commands`)
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !sc.Scan() {
			return sc.Err()
		}
		err := r.exec(ctx, sc.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(r.out, "error: %s\n", message(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *repl) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	cmd, ok := commands[name]
	if !ok {
		return errors.Validationf("unknown command %q", name)
	}
	return cmd.run(ctx, r, args)
}

// message is the text shown for err: the server's detail when there is one.
func message(err error) string {
	var te *client.TransportError
	if errors.As(err, &te) {
		return te.Message()
	}
	var coded *errors.Error
	if errors.As(err, &coded) {
		return coded.Message
	}
	return err.Error()
}

func floatArg(args []string, i int) (float64, error) {
	if len(args) <= i {
		return 0, errors.Validation("missing number")
	}
	v, err := strconv.ParseFloat(args[i], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Validationf("%q is not a number", args[i])
	}
	return v, nil
}

func intArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, errors.Validation("missing number")
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, errors.Validationf("%q is not a whole number", args[i])
	}
	return v, nil
}

func (r *repl) printState() {
	st := r.sess.Controller().State()
	view := r.sess.Document().View()
	playing := "paused"
	if st.IsPlaying {
		playing = "playing"
	}
	fmt.Fprintf(r.out, "%s %s chunk=%d %.1f/%.1fs book=%.1fs rate=%.2f volume=%.2f loop=%t mode=%s page=%d/%d\n",
		r.sess.BookID(), playing, st.ChunkIndex, st.CurrentTime, st.Duration, st.BookTime,
		st.PlaybackRate, st.Volume, st.IsLooping, st.Mode, view.CurrentPage, view.TotalPages)
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help": {"help", func(_ context.Context, r *repl, _ []string) error {
			for _, name := range commandOrder {
				fmt.Fprintf(r.out, "  %s\n", commands[name].usage)
			}
			return nil
		}},
		"quit": {"quit", func(context.Context, *repl, []string) error { return errQuit }},

		"sources": {"sources", func(ctx context.Context, r *repl, _ []string) error {
			sources, err := r.api.AudioSources(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(r.out, strings.Join(sources, " "))
			return nil
		}},
		"files": {"files [source]", func(ctx context.Context, r *repl, args []string) error {
			source := r.source
			if len(args) > 0 {
				source = args[0]
			}
			files, err := r.api.ListAudio(ctx, source)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintf(r.out, "  %-40s %6.1fs\n", f.Name, f.DurationSeconds)
			}
			return nil
		}},
		"books": {"books", func(ctx context.Context, r *repl, _ []string) error {
			books, err := r.api.Audiobooks(ctx)
			if err != nil {
				return err
			}
			for _, b := range books {
				fmt.Fprintf(r.out, "  %-30s %d/%d %s\n", b.BookID, b.ReadyChunks, b.TotalChunks, b.Title)
			}
			return nil
		}},
		"open": {"open <book_id>", func(ctx context.Context, r *repl, args []string) error {
			if len(args) == 0 {
				return errors.Validation("missing book id")
			}
			r.hits = nil
			if err := r.sess.OpenBook(ctx, strings.Join(args, " ")); err != nil {
				return err
			}
			r.printState()
			return nil
		}},
		"file": {"file <name> [source]", func(ctx context.Context, r *repl, args []string) error {
			if len(args) == 0 {
				return errors.Validation("missing file name")
			}
			source := r.source
			if len(args) > 1 {
				source = args[1]
			}
			r.hits = nil
			return r.sess.OpenFile(ctx, source, args[0], true)
		}},

		"play": {"play", func(ctx context.Context, r *repl, _ []string) error {
			return r.sess.Controller().Play(ctx)
		}},
		"pause": {"pause", func(_ context.Context, r *repl, _ []string) error {
			return r.sess.Controller().Pause()
		}},
		"toggle": {"toggle", func(ctx context.Context, r *repl, _ []string) error {
			return r.sess.Controller().TogglePlay(ctx)
		}},
		"seek": {"seek <seconds>", func(_ context.Context, r *repl, args []string) error {
			t, err := floatArg(args, 0)
			if err != nil {
				return err
			}
			_, err = r.sess.Controller().Seek(t)
			return err
		}},
		"skip": {"skip <±seconds>", func(_ context.Context, r *repl, args []string) error {
			d, err := floatArg(args, 0)
			if err != nil {
				return err
			}
			_, err = r.sess.Controller().Skip(d)
			return err
		}},
		"goto": {"goto <book seconds>", func(ctx context.Context, r *repl, args []string) error {
			t, err := floatArg(args, 0)
			if err != nil {
				return err
			}
			return r.sess.Controller().SeekAbsolute(ctx, t)
		}},
		"chunk": {"chunk <index>", func(ctx context.Context, r *repl, args []string) error {
			i, err := intArg(args, 0)
			if err != nil {
				return err
			}
			return r.sess.Controller().PlayChunk(ctx, i)
		}},
		"next": {"next", func(ctx context.Context, r *repl, _ []string) error {
			return r.sess.Controller().NextChunk(ctx)
		}},
		"prev": {"prev", func(ctx context.Context, r *repl, _ []string) error {
			return r.sess.Controller().PreviousChunk(ctx)
		}},
		"rate": {"rate <0.5-2>", func(_ context.Context, r *repl, args []string) error {
			v, err := floatArg(args, 0)
			if err != nil {
				return err
			}
			v, err = r.sess.Controller().SetRate(v)
			if err == nil {
				fmt.Fprintf(r.out, "rate %.2f\n", v)
			}
			return err
		}},
		"volume": {"volume <0-1>", func(_ context.Context, r *repl, args []string) error {
			v, err := floatArg(args, 0)
			if err != nil {
				return err
			}
			v, err = r.sess.Controller().SetVolume(v)
			if err == nil {
				fmt.Fprintf(r.out, "volume %.2f\n", v)
			}
			return err
		}},
		"loop": {"loop on|off", func(_ context.Context, r *repl, args []string) error {
			if len(args) == 0 {
				return errors.Validation("loop takes on or off")
			}
			return r.sess.Controller().SetLoop(args[0] == "on")
		}},
		"mode": {"mode single|sequenced", func(_ context.Context, r *repl, args []string) error {
			if len(args) == 0 {
				return errors.Validation("mode takes single or sequenced")
			}
			switch mode := domain.PlaybackMode(args[0]); mode {
			case domain.ModeSingle, domain.ModeSequenced:
				r.sess.Controller().SetMode(mode)
				return nil
			}
			return errors.Validationf("unknown mode %q", args[0])
		}},

		"page": {"page <n>", func(_ context.Context, r *repl, args []string) error {
			p, err := intArg(args, 0)
			if err != nil {
				return err
			}
			return r.sess.Document().GoToPage(p)
		}},
		"pnext": {"pnext", func(_ context.Context, r *repl, _ []string) error {
			r.sess.Document().NextPage()
			return nil
		}},
		"pprev": {"pprev", func(_ context.Context, r *repl, _ []string) error {
			r.sess.Document().PreviousPage()
			return nil
		}},
		"zoom": {"zoom in|out", func(_ context.Context, r *repl, args []string) error {
			var scale float64
			switch {
			case len(args) > 0 && args[0] == "in":
				scale = r.sess.Document().ZoomIn()
			case len(args) > 0 && args[0] == "out":
				scale = r.sess.Document().ZoomOut()
			default:
				return errors.Validation("zoom takes in or out")
			}
			fmt.Fprintf(r.out, "scale %.0f%%\n", scale*100)
			return nil
		}},
		"fit": {"fit width|height", func(_ context.Context, r *repl, args []string) error {
			if len(args) == 0 {
				return errors.Validation("fit takes width or height")
			}
			switch mode := domain.FitMode(args[0]); mode {
			case domain.FitWidth, domain.FitHeight:
				r.sess.Document().Fit(mode)
				return nil
			}
			return errors.Validationf("unknown fit %q", args[0])
		}},
		"click": {"click", func(ctx context.Context, r *repl, _ []string) error {
			t, err := r.sess.Document().Click(ctx)
			if err == nil {
				fmt.Fprintf(r.out, "seeked to %.1fs\n", t)
			}
			return err
		}},

		"cite": {"cite", func(ctx context.Context, r *repl, _ []string) error {
			c, err := r.sess.Citation(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(r.out, "%s [%s]\n  %s\n", c.Citation, c.Timestamp, c.SentenceText)
			return nil
		}},
		"search": {"search <query>", func(ctx context.Context, r *repl, args []string) error {
			if len(args) == 0 {
				return errors.Validation("missing query")
			}
			hits, err := r.sess.Search(ctx, strings.Join(args, " "), searchLimit)
			if err != nil {
				return err
			}
			r.hits = hits
			if len(hits) == 0 {
				fmt.Fprintln(r.out, "no matches")
			}
			for i, h := range hits {
				fmt.Fprintf(r.out, "  %d. chunk %d p.%d %.1fs: %s\n", i+1, h.ChunkID, h.Page, h.StartTime, h.Snippet)
			}
			return nil
		}},
		"jump": {"jump <result number>", func(ctx context.Context, r *repl, args []string) error {
			n, err := intArg(args, 0)
			if err != nil {
				return err
			}
			if n < 1 || n > len(r.hits) {
				return errors.Validationf("no search result %d", n)
			}
			return r.sess.JumpTo(ctx, r.hits[n-1])
		}},

		"state": {"state", func(_ context.Context, r *repl, _ []string) error {
			r.printState()
			return nil
		}},
		"save": {"save", func(ctx context.Context, r *repl, _ []string) error {
			return r.sess.SavePreferences(ctx)
		}},
	}
}

var commandOrder = []string{
	"books", "sources", "files", "open", "file",
	"play", "pause", "toggle", "seek", "skip", "goto", "chunk", "next", "prev",
	"rate", "volume", "loop", "mode",
	"page", "pnext", "pprev", "zoom", "fit", "click",
	"cite", "search", "jump",
	"state", "save", "help", "quit",
}
