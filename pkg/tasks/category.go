// Package tasks defines the typed task specifications the executor runs:
// immutable command templates grouped into ten categories, each carrying
// privilege, terminal, parsing, and retry policy. Specs are registered
// once at process start and never mutated.
package tasks

// Category is the logical bucket a task specification belongs to.
type Category string

const (
	// CategoryPackages covers package manager operations (install,
	// upgrade, purge). Idempotent and retryable on lock contention.
	CategoryPackages Category = "packages"

	// CategoryServices covers service control (systemctl).
	CategoryServices Category = "services"

	// CategoryContainers covers the container runtime (docker, compose).
	CategoryContainers Category = "containers"

	// CategoryCluster covers cluster orchestration (kubectl, helm).
	CategoryCluster Category = "cluster"

	// CategoryFilesystem covers filesystem and configuration mutation.
	CategoryFilesystem Category = "filesystem"

	// CategoryUsers covers user and access provisioning.
	CategoryUsers Category = "users"

	// CategoryTLS covers TLS key and certificate generation.
	CategoryTLS Category = "tls"

	// CategoryVCS covers version control operations.
	CategoryVCS Category = "vcs"

	// CategoryNetwork covers resource fetches and host diagnostics.
	CategoryNetwork Category = "network"

	// CategoryAdHoc is the generic passthrough used by interactive
	// tooling. The caller supplies flags; there is no retry policy.
	CategoryAdHoc Category = "ad_hoc"
)

// Categories lists every category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryPackages,
		CategoryServices,
		CategoryContainers,
		CategoryCluster,
		CategoryFilesystem,
		CategoryUsers,
		CategoryTLS,
		CategoryVCS,
		CategoryNetwork,
		CategoryAdHoc,
	}
}
