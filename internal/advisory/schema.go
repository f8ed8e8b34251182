package advisory

import (
	"bytes"
	_ "embed"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed intent_proposal.schema.json
var intentProposalSchemaJSON []byte

var (
	schemaOnce    sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr     error
)

// compiledSchema compiles the embedded intent proposal contract once and
// reuses it for every validation call, following the retrieved pack's
// pluginsdk validation pattern (compile-and-cache rather than recompiling
// per call).
func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("intent_proposal.json", bytes.NewReader(intentProposalSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile("intent_proposal.json")
	})
	return schemaCompiled, schemaErr
}
