package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/hanko-field/variants/internal/platform/config"
	pfirestore "github.com/hanko-field/variants/internal/platform/firestore"
	"github.com/hanko-field/variants/internal/platform/jobs"
	"github.com/hanko-field/variants/internal/platform/observability"
	platformstorage "github.com/hanko-field/variants/internal/platform/storage"
	firestoreRepo "github.com/hanko-field/variants/internal/repositories/firestore"
	"github.com/hanko-field/variants/internal/variations"
)

const usage = `usage: variantctl <command> [flags]

commands:
  generate  expand an attribute file into a variation matrix
  apply     apply a bulk template to a matrix file
  save      generate and store a new product's variations
  edit      load a stored product, change it and save the diff
  load      print the stored variations of a product
`

// cloudTraceEnv carries an X-Cloud-Trace-Context value linking a run to an existing trace.
const cloudTraceEnv = "VARIANTS_TRACE_CONTEXT"

const (
	instrumentationName = "github.com/hanko-field/variants/cmd/variantctl"
	userAgent           = "variantctl"
)

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := ""
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	ctx, span := observability.StartCommand(ctx, command, os.Getenv(cloudTraceEnv))
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	if err != nil {
		span.RecordError(err)
	}
	span.End()

	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "variantctl: %v\n\n%s", err, usage)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "variantctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "generate":
		return runGenerate(ctx, rest, stdin, stdout)
	case "apply":
		return runApply(ctx, rest, stdin, stdout)
	case "save":
		return runSave(ctx, rest, stdin, stdout)
	case "edit":
		return runEdit(ctx, rest, stdin, stdout)
	case "load":
		return runLoad(ctx, rest, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func newLogger(level, name string) (*zap.Logger, error) {
	logger, err := observability.NewLogger(level)
	if err != nil {
		return nil, fmt.Errorf("initialise logger: %w", err)
	}
	return logger.Named(name), nil
}

func runGenerate(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("generate")
	attrsPath := fs.String("attributes", "", "YAML attribute file (- for stdin)")
	out := fs.String("out", "", "write the matrix to this file instead of stdout")
	logLevel := fs.String("log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger(*logLevel, "variantctl.generate")
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	defs, err := readAttributes(*attrsPath, stdin)
	if err != nil {
		return err
	}

	editor, err := variations.NewEditor(variations.EditorDeps{Logger: logger})
	if err != nil {
		return err
	}
	editor.SetAttributes(observability.WithLogger(ctx, logger), defs)
	snap := editor.Snapshot()

	return writeJSON(*out, stdout, matrixFile{Attributes: snap.Attributes, Variations: snap.Variations})
}

func runApply(_ context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("apply")
	matrixPath := fs.String("matrix", "", "matrix JSON file (- for stdin)")
	templatePath := fs.String("template", "", "YAML bulk template")
	match := fs.String("match", "", "apply only to variations matching Name=Option|Name=Option")
	ids := fs.String("ids", "", "apply only to these comma separated variation ids")
	out := fs.String("out", "", "write the matrix to this file instead of stdout")
	logLevel := fs.String("log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *matrixPath == "-" && *templatePath == "-" {
		return fmt.Errorf("%w: matrix and template cannot both read stdin", errUsage)
	}

	logger, err := newLogger(*logLevel, "variantctl.apply")
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	matrix, err := readMatrix(*matrixPath, stdin)
	if err != nil {
		return err
	}
	tpl, err := readTemplate(*templatePath, stdin)
	if err != nil {
		return err
	}

	var result variations.BulkResult
	switch {
	case strings.TrimSpace(*ids) != "" || strings.TrimSpace(*match) != "":
		sel, err := selectionFor(matrix, *match, *ids)
		if err != nil {
			return err
		}
		result, err = variations.ApplyToSelected(tpl, sel, matrix.Variations)
		if err != nil {
			return err
		}
	default:
		result, err = variations.ApplyTemplateToAll(tpl, matrix.Variations)
		if err != nil {
			return err
		}
	}
	logger.Info(result.Message(), zap.Strings("variationIds", result.TargetIDs))

	matrix.Variations = result.Variations
	return writeJSON(*out, stdout, matrix)
}

func selectionFor(matrix matrixFile, match, ids string) (*variations.SelectionSet, error) {
	sel := variations.NewSelectionSet()
	for _, id := range strings.Split(ids, ",") {
		if id = strings.TrimSpace(id); id != "" && !sel.Has(id) {
			sel.Toggle(id)
		}
	}
	if strings.TrimSpace(match) != "" {
		m, err := parseSelector(match)
		if err != nil {
			return nil, err
		}
		for _, id := range m.match(matrix.Variations) {
			if !sel.Has(id) {
				sel.Toggle(id)
			}
		}
	}
	return sel, nil
}

// backends holds the cloud clients shared by the commands that talk to storage.
type backends struct {
	cfg       config.Config
	logger    *zap.Logger
	provider  *pfirestore.Provider
	repo      *firestoreRepo.VariationRepository
	pubsub    *pubsub.Client
	topic     *pubsub.Topic
	publisher variations.SaveEventPublisher
	storage   *cloudstorage.Client
	media     variations.MediaSource
}

func openBackends(ctx context.Context, envFile string, withMedia bool, name string) (*backends, error) {
	opts := []config.Option{}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	cfg, err := config.Load(ctx, opts...)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			return nil, fmt.Errorf("configuration invalid: %s", strings.Join(validation.Fields(), ", "))
		}
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := newLogger(cfg.Log.Level, name)
	if err != nil {
		return nil, err
	}

	b := &backends{cfg: cfg, logger: logger}
	b.provider = pfirestore.NewProvider(cfg.Firestore, pfirestore.WithClientOptions(option.WithUserAgent(userAgent)))
	b.repo, err = firestoreRepo.NewVariationRepository(firestoreRepo.VariationRepositoryDeps{
		Provider:           b.provider,
		ProductsCollection: cfg.Firestore.ProductsCollection,
		Logger:             logger,
	})
	if err != nil {
		b.Close()
		return nil, err
	}

	if strings.TrimSpace(cfg.PubSub.SavedTopic) != "" {
		b.pubsub, b.topic, err = jobs.OpenSavedTopic(ctx, cfg.PubSub, option.WithUserAgent(userAgent))
		if err != nil {
			b.Close()
			return nil, err
		}
		b.publisher, err = jobs.NewPubSubSaveEventPublisher(b.topic)
		if err != nil {
			b.Close()
			return nil, err
		}
	} else {
		logger.Info("save events disabled: no topic configured")
	}

	if withMedia {
		b.storage, err = cloudstorage.NewClient(ctx, option.WithUserAgent(userAgent))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("initialise storage client: %w", err)
		}
		resolver, err := platformstorage.NewMediaResolver(b.storage, cfg.Storage)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.media = resolver
	}
	return b, nil
}

func (b *backends) Close() {
	if b.topic != nil {
		b.topic.Stop()
	}
	if b.pubsub != nil {
		if err := b.pubsub.Close(); err != nil {
			b.logger.Warn("pubsub close error", zap.Error(err))
		}
	}
	if b.storage != nil {
		if err := b.storage.Close(); err != nil {
			b.logger.Warn("storage close error", zap.Error(err))
		}
	}
	if b.provider != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.provider.Close(closeCtx); err != nil {
			b.logger.Warn("firestore close error", zap.Error(err))
		}
	}
	_ = b.logger.Sync()
}

func (b *backends) newEditor(mode variations.Mode, productID string) (*variations.Editor, error) {
	policy, err := variations.ParseResetPolicy(b.cfg.Save.ResetPolicy)
	if err != nil {
		return nil, err
	}
	deps := variations.EditorDeps{
		Mode:        mode,
		ProductID:   productID,
		Persistence: b.repo,
		Loader:      b.repo,
		ResetPolicy: policy,
		Logger:      b.logger,
		Tracer:      observability.Tracer(instrumentationName),
		Meter:       observability.Meter(instrumentationName),
	}
	if b.publisher != nil {
		deps.Events = b.publisher
	}
	return variations.NewEditor(deps)
}

// attachImages resolves every assignment concurrently and waits for all of them.
func (b *backends) attachImages(ctx context.Context, editor *variations.Editor, images imageFlags) error {
	if len(images) == 0 {
		return nil
	}
	vars := editor.Snapshot().Variations
	var pending []<-chan error
	for _, img := range images {
		ids := img.match.match(vars)
		if len(ids) == 0 {
			b.logger.Warn("image matches no variation", zap.String("ref", img.ref))
			continue
		}
		for _, id := range ids {
			pending = append(pending, editor.AttachImageAsync(ctx, id, b.media, img.ref))
		}
	}
	var errs []error
	for _, ch := range pending {
		if err := <-ch; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *backends) save(ctx context.Context, editor *variations.Editor, stdout io.Writer) error {
	saveCtx, cancel := context.WithTimeout(ctx, b.cfg.Save.Timeout)
	defer cancel()

	summary, err := editor.Save(saveCtx)
	if summary.Status != "" {
		fmt.Fprintln(stdout, summary.Status)
	}
	return err
}

func runSave(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("save")
	productID := fs.String("product", "", "product id")
	attrsPath := fs.String("attributes", "", "YAML attribute file (- for stdin)")
	templatePath := fs.String("template", "", "YAML bulk template applied to every variation")
	fieldsPath := fs.String("fields", "", "YAML file with parent product fields")
	envFile := fs.String("env", "", ".env file with configuration overrides")
	var images imageFlags
	fs.Var(&images, "image", "attach an uploaded image, Name=Option@ref (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*productID) == "" {
		return fmt.Errorf("%w: -product is required", errUsage)
	}

	defs, err := readAttributes(*attrsPath, stdin)
	if err != nil {
		return err
	}

	b, err := openBackends(ctx, *envFile, len(images) > 0, "variantctl.save")
	if err != nil {
		return err
	}
	defer b.Close()
	ctx = observability.WithLogger(ctx, b.logger)

	editor, err := b.newEditor(variations.ModeCreate, *productID)
	if err != nil {
		return err
	}
	if n := editor.SetAttributes(ctx, defs); n == 0 {
		b.logger.Warn("attributes produce no variations")
	}
	if *fieldsPath != "" {
		fields, err := readProductFields(*fieldsPath, stdin)
		if err != nil {
			return err
		}
		editor.SetProductFields(fields)
	}
	if *templatePath != "" {
		tpl, err := readTemplate(*templatePath, stdin)
		if err != nil {
			return err
		}
		result, err := editor.ApplyTemplateToAll(tpl)
		if err != nil {
			return err
		}
		b.logger.Info(result.Message())
	}
	if err := b.attachImages(ctx, editor, images); err != nil {
		return err
	}
	return b.save(ctx, editor, stdout)
}

func runEdit(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := newFlagSet("edit")
	productID := fs.String("product", "", "product id")
	attrsPath := fs.String("attributes", "", "YAML attribute file; regenerates the matrix")
	templatePath := fs.String("template", "", "YAML bulk template")
	match := fs.String("match", "", "apply the template only to variations matching Name=Option|Name=Option")
	remove := fs.String("remove", "", "remove variations matching Name=Option|Name=Option")
	fieldsPath := fs.String("fields", "", "YAML file with parent product fields")
	envFile := fs.String("env", "", ".env file with configuration overrides")
	var images imageFlags
	fs.Var(&images, "image", "attach an uploaded image, Name=Option@ref (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*productID) == "" {
		return fmt.Errorf("%w: -product is required", errUsage)
	}

	b, err := openBackends(ctx, *envFile, len(images) > 0, "variantctl.edit")
	if err != nil {
		return err
	}
	defer b.Close()
	ctx = observability.WithLogger(ctx, b.logger)

	editor, err := b.newEditor(variations.ModeEdit, *productID)
	if err != nil {
		return err
	}
	if err := editor.Load(ctx); err != nil {
		return err
	}

	if *attrsPath != "" {
		defs, err := readAttributes(*attrsPath, stdin)
		if err != nil {
			return err
		}
		editor.SetAttributes(ctx, defs)
	}
	if *remove != "" {
		sel, err := parseSelector(*remove)
		if err != nil {
			return err
		}
		for _, id := range sel.match(editor.Snapshot().Variations) {
			if err := editor.RemoveVariation(id); err != nil {
				return err
			}
		}
	}
	if *fieldsPath != "" {
		fields, err := readProductFields(*fieldsPath, stdin)
		if err != nil {
			return err
		}
		editor.SetProductFields(fields)
	}
	if *templatePath != "" {
		tpl, err := readTemplate(*templatePath, stdin)
		if err != nil {
			return err
		}
		var result variations.BulkResult
		if strings.TrimSpace(*match) == "" {
			result, err = editor.ApplyTemplateToAll(tpl)
		} else {
			var sel selector
			sel, err = parseSelector(*match)
			if err != nil {
				return err
			}
			editor.ReplaceSelection(sel.match(editor.Snapshot().Variations))
			result, err = editor.ApplyToSelected(tpl)
		}
		if err != nil {
			return err
		}
		b.logger.Info(result.Message())
	}
	if err := b.attachImages(ctx, editor, images); err != nil {
		return err
	}
	return b.save(ctx, editor, stdout)
}

func runLoad(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("load")
	productID := fs.String("product", "", "product id")
	out := fs.String("out", "", "write the matrix to this file instead of stdout")
	envFile := fs.String("env", "", ".env file with configuration overrides")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*productID) == "" {
		return fmt.Errorf("%w: -product is required", errUsage)
	}

	b, err := openBackends(ctx, *envFile, false, "variantctl.load")
	if err != nil {
		return err
	}
	defer b.Close()

	editor, err := b.newEditor(variations.ModeEdit, *productID)
	if err != nil {
		return err
	}
	if err := editor.Load(observability.WithLogger(ctx, b.logger)); err != nil {
		return err
	}
	snap := editor.Snapshot()
	return writeJSON(*out, stdout, matrixFile{
		ProductID:  snap.ProductID,
		Attributes: snap.Attributes,
		Variations: snap.Variations,
	})
}
