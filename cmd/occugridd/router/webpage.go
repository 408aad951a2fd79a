package router

// indexPage is the live view served at /. It polls /api/thermal once a
// second and renders the expanded frame on a canvas, alongside the current
// occupancy count and room temperature.
const indexPage = `<!DOCTYPE html>
<html>
<head>
    <title>Occugrid Thermal View</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body {
            font-family: Arial, sans-serif;
            background: #1a1a1a;
            color: #fff;
            margin: 0;
            padding: 20px;
            text-align: center;
        }
        h1 {
            margin-bottom: 10px;
        }
        .info {
            margin: 10px 0;
            font-size: 14px;
        }
        .occupancy {
            font-size: 28px;
            font-weight: bold;
            margin: 10px 0;
        }
        #thermalCanvas {
            border: 2px solid #333;
            background: #000;
            margin: 20px auto;
            display: block;
            image-rendering: pixelated;
            image-rendering: crisp-edges;
        }
        .status {
            margin: 10px 0;
            font-size: 12px;
            color: #aaa;
        }
    </style>
</head>
<body>
    <h1>Occugrid Thermal View</h1>
    <div class="occupancy">Occupancy: <span id="occupancy">--</span></div>
    <div class="info">
        <div>Min: <span id="minTemp">--</span>&deg;C | Max: <span id="maxTemp">--</span>&deg;C | Room: <span id="roomTemp">--</span>&deg;C</div>
        <div class="status" id="status">Waiting for data...</div>
    </div>
    <canvas id="thermalCanvas" width="320" height="240"></canvas>

    <script>
        const canvas = document.getElementById('thermalCanvas');
        const ctx = canvas.getContext('2d');

        function refreshImage() {
            fetch('/api/thermal')
                .then(response => response.json())
                .then(data => {
                    if (data.error) {
                        document.getElementById('status').textContent = 'No data available';
                        return;
                    }
                    drawThermalImage(data);
                    document.getElementById('minTemp').textContent = data.min_temp;
                    document.getElementById('maxTemp').textContent = data.max_temp;
                    document.getElementById('roomTemp').textContent = data.room_temp;
                    document.getElementById('occupancy').textContent = data.occupancy;
                    if (data.last_update) {
                        const updateTime = new Date(data.last_update).toLocaleTimeString();
                        document.getElementById('status').textContent = 'Last update: ' + updateTime;
                    }
                })
                .catch(error => {
                    document.getElementById('status').textContent = 'Error: ' + error;
                    console.error('Error:', error);
                });
        }

        function drawThermalImage(data) {
            const pixelSize = Math.min(
                Math.floor(canvas.width / data.width),
                Math.floor(canvas.height / data.height)
            );

            const offsetX = (canvas.width - data.width * pixelSize) / 2;
            const offsetY = (canvas.height - data.height * pixelSize) / 2;

            ctx.clearRect(0, 0, canvas.width, canvas.height);

            data.pixels.forEach(pixel => {
                ctx.fillStyle = 'rgb(' + pixel.r + ', ' + pixel.g + ', ' + pixel.b + ')';
                ctx.fillRect(
                    offsetX + pixel.col * pixelSize,
                    offsetY + pixel.row * pixelSize,
                    pixelSize,
                    pixelSize
                );
            });
        }

        // Refresh every 1 second
        refreshImage();
        setInterval(refreshImage, 1000);
    </script>
</body>
</html>`
