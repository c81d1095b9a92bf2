// Package catalog loads the static dependency graph of buildable services
// from service.hcl files discovered in a repository checkout.
//
// The catalog is built once per scheduling invocation and is immutable
// afterwards, with one exception: the per-unit Dirty flag, which the dirty
// package flips in place while deciding what needs a rebuild.
//
// A service.hcl file declares one or more services:
//
//	service "worker" {
//	  dockerfile = "Dockerfile"
//	  depends_on = ["base"]
//
//	  env {
//	    TOOLCHAIN = "stable"
//	  }
//	}
//
// The build context of a service is the directory containing its service.hcl
// file. Dependency names must resolve to other services in the same catalog
// and the dependency relation must be acyclic; both are load-time errors.
package catalog
