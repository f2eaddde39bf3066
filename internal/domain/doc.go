// Package domain contains the core entities of the analysis service: request
// kinds, task statuses, partial results and visualization descriptors. It has
// no dependencies on storage, transport or scheduling.
package domain
