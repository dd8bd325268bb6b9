// Package model provides the data structures shared by the pipeline package and its collaborators.
// It defines identifiers, shader stages, build statuses, compiler contracts and the hooks a pipeline option
// implements to observe builds and frame execution.
package model
