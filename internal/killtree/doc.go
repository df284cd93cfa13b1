// Package killtree terminates a process together with every process it
// transitively spawned.
//
// Full tree termination is only guaranteed on Linux, where descendants are
// enumerated from procfs and signalled individually in addition to the
// process group. On other Unix systems the package relies on job-control
// semantics alone: the group signal reaches every member of the child's
// process group, but descendants that moved themselves into a new group are
// missed. On Windows only the direct child is terminated.
package killtree
