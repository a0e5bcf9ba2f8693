// Package fal talks to the fal.ai queue API.
//
// Every generation follows the same shape: submit a request to a model,
// poll its status until the queue reports completion, fetch the result
// document and download the media it points at. Image inputs are sent
// inline as data URIs so local pool files never need public hosting.
package fal
