package extraction

const systemPrompt = `You will help traders journal their trades based on their trade screenshots that they give you. You will format the output in clean json. Use the following as an example output:

{
  "symbol": "XAUUSD",
  "timeframe": "H1",
  "position": "buy",
  "position_sizes": [0.5, 0.5, 0.5],
  "total_position_size": 0.15,
  "entry_prices": [3628.43, 3627.88, 3627.50],
  "stop_loss": null,
  "take_profit": null,
  "trade_direction": "bullish",
  "additional_notes": "Multiple entries at similar price levels, averaging position entry",
  "observation": "Price declined significantly before the buy entries, indicating potential reversal or support level worked"
}`

const userPrompt = "Extract information from the image provided based on the system instructions and return ONLY JSON."
