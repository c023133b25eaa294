package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ertugrulornek7-byte/zilseker/internal/capture"
	"github.com/ertugrulornek7-byte/zilseker/internal/directory"
	"github.com/ertugrulornek7-byte/zilseker/internal/models"
	"github.com/ertugrulornek7-byte/zilseker/internal/service"
	"github.com/ertugrulornek7-byte/zilseker/internal/statestore"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type cli struct {
	svc *service.ClientService
	out io.Writer
	log *zap.Logger
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(ctx, args)
	case "logout":
		if err := c.svc.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "logged out")
		return nil
	case "whoami":
		id, err := c.svc.Whoami()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "name: %s\nstation: %t\nclient id: %s\n", id.ProfileName, id.IsStation, id.ClientID)
		return nil
	case "acquire":
		if err := c.svc.Acquire(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "control acquired")
		return nil
	case "release":
		if err := c.svc.Release(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "control released")
		return nil
	case "announce":
		return c.announce(ctx, args)
	case "stop":
		epoch, err := c.svc.Stop(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "stop requested (epoch %d)\n", epoch)
		return nil
	case "volume":
		return c.volume(ctx, args)
	case "status":
		return c.status(ctx)
	case "watch":
		return c.watch(ctx)
	case "schedule":
		return c.schedule(ctx, args)
	case "sounds":
		return c.sounds(ctx, args)
	case "users":
		return c.users(ctx, args)
	default:
		return fmt.Errorf("unknown command %q (see zil-client --help)", cmd)
	}
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	station := fs.Bool("station", false, "use this device as a station")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *station {
		if _, err := c.svc.LoginStation(); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "this device is now a station")
		return nil
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: zil-client login <name>")
	}
	id, err := c.svc.Login(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "logged in as %s\n", id.ProfileName)
	return nil
}

func (c *cli) announce(ctx context.Context, args []string) error {
	fs := newFlagSet("announce")
	file := fs.String("file", "", "pre-recorded audio file")
	device := fs.String("device", "", "capture device for ffmpeg (e.g. default, hw:0)")
	format := fs.String("format", "pulse", "ffmpeg input format (pulse, alsa, avfoundation, dshow)")
	duration := fs.Duration("duration", 10*time.Second, "recording length when using --device")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		rec  capture.Recorder
		wait func(context.Context) error
	)
	switch {
	case *file != "":
		rec = capture.NewFileRecorder(*file)
	case *device != "":
		rec = capture.NewFFmpegRecorder(*format, *device, c.log)
		wait = service.RecordFor(*duration)
		fmt.Fprintf(c.out, "recording for %s...\n", *duration)
	default:
		return fmt.Errorf("one of --file or --device is required")
	}

	seq, err := c.svc.Announce(ctx, rec, wait)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "announcement #%d published\n", seq)
	return nil
}

func (c *cli) volume(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: zil-client volume <0-100>")
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid volume %q", args[0])
	}
	if err := c.svc.SetVolume(ctx, v); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "volume set to %d\n", v)
	return nil
}

func (c *cli) status(ctx context.Context) error {
	st, err := c.svc.Status(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "volume:\t%d\n", st.State.Volume)
	switch {
	case !st.State.Controlled():
		fmt.Fprintf(w, "control:\tfree\n")
	case st.HoldsControl:
		fmt.Fprintf(w, "control:\theld by you\n")
	case st.LeaseExpired:
		fmt.Fprintf(w, "control:\t%s (lease expired)\n", st.State.ActiveControllerName)
	default:
		fmt.Fprintf(w, "control:\t%s\n", st.State.ActiveControllerName)
	}
	fmt.Fprintf(w, "announcements:\t%d\n", st.State.AnnouncementSeq)
	if st.LastBellLabel != "" {
		fmt.Fprintf(w, "last bell:\t%s\n", st.LastBellLabel)
	}
	if st.State.StopEpoch > 0 {
		fmt.Fprintf(w, "last stop:\t%s\n", time.UnixMilli(st.State.StopEpoch).Format(time.DateTime))
	}
	fmt.Fprintf(w, "revision:\t%d\n", st.State.Rev)
	return w.Flush()
}

func (c *cli) watch(ctx context.Context) error {
	return c.svc.Watch(ctx, func(d statestore.Delivery) {
		s := d.State
		switch d.Kind {
		case statestore.DeliveryDisconnected:
			fmt.Fprintln(c.out, "[offline] view is stale, reconnecting...")
		case statestore.DeliverySnapshot:
			fmt.Fprintf(c.out, "[snapshot:%s] rev=%d volume=%d controller=%q announcements=%d\n",
				d.Reason, s.Rev, s.Volume, s.ActiveControllerName, s.AnnouncementSeq)
		case statestore.DeliveryChange:
			p := d.Patch
			switch {
			case p.Volume != nil:
				fmt.Fprintf(c.out, "[rev %d] volume -> %d\n", s.Rev, *p.Volume)
			case p.Controller != nil && p.Controller.ID == "":
				fmt.Fprintf(c.out, "[rev %d] control released\n", s.Rev)
			case p.Controller != nil:
				fmt.Fprintf(c.out, "[rev %d] control -> %s\n", s.Rev, p.Controller.Name)
			case p.Announcement != nil:
				fmt.Fprintf(c.out, "[rev %d] announcement #%d\n", s.Rev, p.Announcement.Seq)
			case p.StopEpoch != nil:
				fmt.Fprintf(c.out, "[rev %d] stop\n", s.Rev)
			case p.LastTriggeredBell != nil:
				fmt.Fprintf(c.out, "[rev %d] bell %s\n", s.Rev, *p.LastTriggeredBell)
			}
		}
	})
}

// ============================================
// 目录管理
// ============================================

func (c *cli) schedule(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: zil-client schedule list|add|update|delete|export|import")
	}
	dir := c.svc.Directory()
	sub, args := args[0], args[1:]

	switch sub {
	case "list":
		fs := newFlagSet("schedule list")
		day := fs.String("day", "", "only this day (1-7 or name)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		var (
			entries []models.ScheduleEntry
			err     error
		)
		if *day != "" {
			d, perr := models.ParseWeekday(*day)
			if perr != nil {
				return perr
			}
			entries, err = dir.ScheduleForDay(ctx, d)
		} else {
			entries, err = dir.ListSchedule(ctx)
		}
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDAY\tTIME\tLABEL\tSOUND")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Day, e.Time, e.Label, e.SoundRef)
		}
		return w.Flush()

	case "add":
		fs := newFlagSet("schedule add")
		e, err := parseEntryFlags(fs, args, models.ScheduleEntry{SoundRef: models.BuiltinSounds()[0].ID})
		if err != nil {
			return err
		}
		created, err := dir.AddSchedule(ctx, e)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "added %s (%s %s)\n", created.ID, created.Day, created.Time)
		return nil

	case "update":
		if len(args) == 0 {
			return fmt.Errorf("usage: zil-client schedule update <id> [flags]")
		}
		current, err := dir.Repository().GetSchedule(ctx, args[0])
		if err != nil {
			return err
		}
		fs := newFlagSet("schedule update")
		e, err := parseEntryFlags(fs, args[1:], *current)
		if err != nil {
			return err
		}
		if err := dir.UpdateSchedule(ctx, e); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "updated %s\n", e.ID)
		return nil

	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: zil-client schedule delete <id>")
		}
		if err := dir.DeleteSchedule(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "deleted %s\n", args[0])
		return nil

	case "export":
		fs := newFlagSet("schedule export")
		out := fs.String("out", "schedule.xlsx", "output file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		data, err := c.svc.ExportSchedule(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", *out, err)
		}
		fmt.Fprintf(c.out, "exported to %s\n", *out)
		return nil

	case "import":
		fs := newFlagSet("schedule import")
		in := fs.String("in", "", "xlsx file to import")
		replace := fs.Bool("replace", false, "delete the current schedule first")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *in == "" {
			return fmt.Errorf("--in is required")
		}
		f, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer f.Close()
		entries, err := directory.ImportScheduleXLSX(f)
		if err != nil {
			return err
		}
		n, err := c.svc.ImportSchedule(ctx, entries, *replace)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "imported %d entries\n", n)
		return nil

	default:
		return fmt.Errorf("unknown schedule command %q", sub)
	}
}

// parseEntryFlags 在 base 上应用命令行中出现的字段
func parseEntryFlags(fs *pflag.FlagSet, args []string, base models.ScheduleEntry) (models.ScheduleEntry, error) {
	day := fs.String("day", "", "day of week (1-7 or name)")
	slot := fs.String("time", "", "time HH:MM (24h)")
	label := fs.String("label", "", "label")
	sound := fs.String("sound", "", "sound id, name or URL")
	if err := fs.Parse(args); err != nil {
		return base, err
	}

	e := base
	if fs.Changed("day") {
		d, err := models.ParseWeekday(*day)
		if err != nil {
			return base, err
		}
		e.Day = d
	}
	if fs.Changed("time") {
		e.Time = *slot
	}
	if fs.Changed("label") {
		e.Label = *label
	}
	if fs.Changed("sound") {
		e.SoundRef = *sound
	}
	return e, nil
}

func (c *cli) sounds(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	dir := c.svc.Directory()
	sub, args := args[0], args[1:]

	switch sub {
	case "list":
		sounds, err := dir.ListSounds(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tBUILT-IN\tAUDIO")
		for _, s := range sounds {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", s.ID, s.Name, s.BuiltIn, s.AudioRef)
		}
		return w.Flush()

	case "add":
		fs := newFlagSet("sounds add")
		name := fs.String("name", "", "display name")
		ref := fs.String("ref", "", "audio URL")
		if err := fs.Parse(args); err != nil {
			return err
		}
		s, err := dir.AddSound(ctx, *name, *ref)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "added %s\n", s.ID)
		return nil

	case "update":
		if len(args) == 0 {
			return fmt.Errorf("usage: zil-client sounds update <id> [--name] [--ref]")
		}
		current, err := dir.Repository().GetSound(ctx, args[0])
		if err != nil {
			return err
		}
		fs := newFlagSet("sounds update")
		name := fs.String("name", current.Name, "display name")
		ref := fs.String("ref", current.AudioRef, "audio URL")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		current.Name, current.AudioRef = *name, *ref
		if err := dir.UpdateSound(ctx, *current); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "updated %s\n", current.ID)
		return nil

	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: zil-client sounds delete <id>")
		}
		if err := dir.DeleteSound(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "deleted %s\n", args[0])
		return nil

	default:
		return fmt.Errorf("unknown sounds command %q", sub)
	}
}

func (c *cli) users(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	dir := c.svc.Directory()

	switch args[0] {
	case "list":
		users, err := dir.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintln(c.out, u)
		}
		return nil
	case "add", "remove":
		if len(args) != 2 {
			return fmt.Errorf("usage: zil-client users %s <name>", args[0])
		}
		if args[0] == "add" {
			if err := dir.AddUser(ctx, args[1]); err != nil {
				return err
			}
		} else if err := dir.RemoveUser(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s: %s\n", args[0], args[1])
		return nil
	default:
		return fmt.Errorf("unknown users command %q", args[0])
	}
}
