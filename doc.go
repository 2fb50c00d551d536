// graphql-migrate rewrites GraphQL operations embedded in JavaScript and
// TypeScript sources to keep up with a moving schema.
//
// It extracts operations from template literals, matches them against
// deprecation rules derived from the schema or supplied as data, rewrites the
// matched documents at the AST level and splices the result back into the
// original files without disturbing surrounding code. Every rewrite is scored
// for confidence, and rollout of migrated operations is gated behind feature
// flags with health based automatic rollback.
//
// The gqlmigrate CLI in cmd wires the pipeline together, while the packages
// under pkg can be used individually: pkg/extraction finds operations,
// pkg/transformer rewrites them, pkg/applicator writes them back, and
// pkg/rollout and pkg/health control exposure of the migrated queries.
package main
