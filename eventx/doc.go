// Package eventx provides typed events and an in-process event bus.
//
// Batch extraction publishes its lifecycle on a bus:
//
//	bus := eventx.NewMemoryBus()
//	bus.Subscribe(eventx.AllEvents, eventx.JSONLines(os.Stdout))
//
//	eventx.SubscribeTyped(bus, ocr.EventBatchItem,
//		func(ctx context.Context, e eventx.TypedEvent[ocr.BatchItem]) error {
//			fmt.Printf("%.0f%%\n", e.Data().Percent)
//			return nil
//		})
//
//	outcomes := backend.ExtractBatch(ctx, sources, ocr.WithEvents(bus))
package eventx
