package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"dxt/state"
)

const docxExt = ".docx"

// Run is the action of translate subcommand.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	for flag, field := range map[string]*string{
		"from": &env.Cfg.Translation.SourceLanguage,
		"to":   &env.Cfg.Translation.TargetLanguage,
	} {
		if lang := cmd.String(flag); lang != "" {
			if _, err := language.Parse(lang); err != nil {
				return fmt.Errorf("bad language tag %q: %w", lang, err)
			}
			*field = lang
		}
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")
	env.DryRun, env.SaveXML = cmd.Bool("dry-run"), cmd.Bool("xml")

	log.Info("Processing starting",
		zap.String("source", src), zap.String("destination", dst),
		zap.String("from", env.Cfg.Translation.SourceLanguage), zap.String("to", env.Cfg.Translation.TargetLanguage),
		zap.Bool("dry-run", env.DryRun), zap.String("run_id", env.RunID))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// process handles the core logic independently of CLI framework: source is
// either a single document or a directory with documents.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("input source was not found (%s): %w", src, err)
	}

	if fi.Mode().IsDir() {
		if strings.EqualFold(filepath.Ext(dst), docxExt) {
			return fmt.Errorf("destination must be a directory when processing directory (%s)", dst)
		}
		return processDir(ctx, src, dst, log)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("unexpected path mode for (%s)", src)
	}
	if !isDocument(src) {
		return fmt.Errorf("input was not recognized as docx document (%s)", src)
	}
	return processDocument(ctx, src, filepath.Base(src), dst, log)
}

// isDocument filters by name, Word keeps lock files with the same extension
// next to open documents.
func isDocument(path string) bool {
	name := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(name), docxExt) && !strings.HasPrefix(name, "~$")
}

// processDir walks directory tree finding docx files and processes them.
// Failure of a single document is logged and does not stop the walk.
func processDir(ctx context.Context, dir, dst string, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() && path != dir && path == dst {
			// do not pick up our own results
			return filepath.SkipDir
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !isDocument(path) {
			log.Debug("Skipping file, not recognized as document", zap.String("file", path))
			return nil
		}

		count++

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processDocument(ctx, path, src, dst, log); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
}

// processDocument translates single document. "src" is the part of source
// path relative to the processing root (base name for single document), it
// drives output naming. "dst" is either destination directory or exact
// output file name.
func processDocument(ctx context.Context, path, src, dst string, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var outputName string

	log.Info("Translation starting", zap.String("from", src))
	defer func(start time.Time) {
		// NOTE: image decoders are not mature enough, if many documents are
		// being processed we do not want to stop.
		if r := recover(); r != nil {
			log.Error("Translation ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("translation panic: %v", r)
		} else if rerr == nil {
			log.Info("Translation completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
		}
	}(time.Now())

	if strings.EqualFold(filepath.Ext(dst), docxExt) {
		outputName = dst
	} else {
		outputName = buildOutputPath(src, dst, env)
	}

	if outputName == path {
		return fmt.Errorf("output file would replace source: %s", outputName)
	}

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if _, err := Process(ctx, path, outputName, env, log); err != nil {
		return err
	}
	return nil
}

// Inspect is the action of inspect subcommand: prints document analysis to
// standard output without translating anything.
func Inspect(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("inspect")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Mailformed command line, too many sources", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}
	return Describe(ctx, src, os.Stdout, env, log)
}
