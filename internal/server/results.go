package server

import (
	"github.com/aleksaelezovic/trigo/internal/sparql/executor"
	"github.com/aleksaelezovic/trigo/internal/sparql/results"
)

// Response formatting is implemented once in internal/sparql/results and
// reused here so the HTTP endpoint and the W3C test runner stay consistent.

func FormatSelectResultsJSON(result *executor.SelectResult) ([]byte, error) {
	return results.FormatSelectResultsJSON(result)
}

func FormatAskResultJSON(result *executor.AskResult) ([]byte, error) {
	return results.FormatAskResultJSON(result)
}

func FormatSelectResultsXML(result *executor.SelectResult) ([]byte, error) {
	return results.FormatSelectResultsXML(result)
}

func FormatAskResultXML(result *executor.AskResult) ([]byte, error) {
	return results.FormatAskResultXML(result)
}

func FormatConstructResultNTriples(result *executor.ConstructResult) ([]byte, error) {
	return results.FormatConstructResultNTriples(result)
}
