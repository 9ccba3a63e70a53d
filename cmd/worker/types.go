package main

import "github.com/freshkart/grocery-orderflow/internal/orders"

// WorkerMessage is the payload sent from API -> SQS -> Worker. It is the
// orders.PlacedEvent shape; aliased here so the queue contract is explicit.
type WorkerMessage = orders.PlacedEvent
