package catalog

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/buildsched/internal/ctxlog"
	"github.com/vk/buildsched/internal/fsutil"
)

// ServiceFileName is the per-service definition file discovered under the
// repository root. Its containing directory is the service's build context.
const ServiceFileName = "service.hcl"

// envBlock holds the free-form attributes of an `env` block.
type envBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// serviceBlock is the HCL shape of one `service` block.
type serviceBlock struct {
	Name       string    `hcl:"name,label"`
	Dockerfile string    `hcl:"dockerfile,optional"`
	DependsOn  []string  `hcl:"depends_on,optional"`
	Env        *envBlock `hcl:"env,block"`
}

// fileRoot decodes all top-level blocks of a service.hcl file.
type fileRoot struct {
	Services []*serviceBlock `hcl:"service,block"`
}

// Load discovers and parses every service.hcl under repoRoot, then validates
// the resulting dependency graph. Any validation failure is fatal to the
// invocation: nothing downstream may run against a partially-trusted catalog.
func Load(ctx context.Context, repoRoot string) (*Catalog, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByName(repoRoot, ServiceFileName)
	if err != nil {
		return nil, fmt.Errorf("scanning %s for service definitions: %w", repoRoot, err)
	}
	logger.Debug("Discovered service definition files.", "count", len(files))
	if len(files) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoServices, repoRoot)
	}

	cat := &Catalog{units: make(map[string]*Unit)}
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s: %w", file, diags)
		}

		contextDir, err := filepath.Rel(repoRoot, filepath.Dir(file))
		if err != nil {
			return nil, fmt.Errorf("resolving build context of %s: %w", file, err)
		}

		for _, block := range root.Services {
			unit, err := translateService(block, contextDir)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			if _, exists := cat.units[unit.Name]; exists {
				return nil, fmt.Errorf("%w: %q (redefined in %s)", ErrDuplicateService, unit.Name, file)
			}
			cat.units[unit.Name] = unit
			logger.Debug("Loaded service definition.",
				"service", unit.Name, "context", unit.Context, "deps", len(unit.DependsOn))
		}
	}

	if err := cat.validate(); err != nil {
		return nil, err
	}
	logger.Debug("Catalog validation passed.", "services", cat.Len())

	return cat, nil
}

// translateService converts a decoded service block into a Unit.
func translateService(block *serviceBlock, contextDir string) (*Unit, error) {
	if block.Name == "" {
		return nil, fmt.Errorf("%w: empty service name", ErrInvalidServiceBlock)
	}

	dockerfile := block.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	env, err := evalEnvBlock(block.Env)
	if err != nil {
		return nil, fmt.Errorf("service %q: %w", block.Name, err)
	}

	return &Unit{
		Name:       block.Name,
		Context:    filepath.ToSlash(contextDir),
		Dockerfile: dockerfile,
		DependsOn:  block.DependsOn,
		Env:        env,
	}, nil
}

// evalEnvBlock evaluates the free-form attributes of an env block into
// string values. Expressions may not reference variables; the service file
// carries static configuration only.
func evalEnvBlock(block *envBlock) (map[string]string, error) {
	if block == nil || block.Body == nil {
		return nil, nil
	}

	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid env block: %w", diags)
	}
	if len(attrs) == 0 {
		return nil, nil
	}

	env := make(map[string]string, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluating env %q: %w", name, diags)
		}
		strVal, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, fmt.Errorf("env %q is not convertible to string: %w", name, err)
		}
		env[name] = strVal.AsString()
	}
	return env, nil
}
